package manifest

import (
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/songdl-cli/songdl/source"
)

var (
	ErrMalformedManifest        = errors.New("malformed manifest")
	ErrUnsupportedMimeType      = errors.New("unsupported manifest mime type")
	ErrNoPlayableRepresentation = errors.New("no playable representation")
)

const (
	MimeTypeBT   = "application/vnd.tidal.bt"
	MimeTypeDash = "application/dash+xml"
)

// btManifest is the opaque-URL JSON form.
type btManifest struct {
	MimeType       string   `json:"mimeType"`
	Codecs         string   `json:"codecs"`
	EncryptionType string   `json:"encryptionType"`
	KeyID          string   `json:"keyId"`
	URLs           []string `json:"urls"`
}

// Providers emit inconsistent default namespaces on the MPD root; drop the
// first declaration so the document parses unqualified.
var xmlnsRe = regexp.MustCompile(`\s+xmlns="[^"]*"`)

// Dollar-delimited substitution variables, optionally with a printf-style
// width ($Number%05d$).
var templateVarRe = regexp.MustCompile(`\$(\w+)(%0\d+d)?\$`)

// Parse decodes a base64 manifest payload into a stream descriptor.
// SoundQuality is left empty; the caller stamps the tier it negotiated.
func Parse(mimeType string, payload []byte) (*source.StreamDescriptor, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedManifest, err)
	}

	switch {
	case strings.EqualFold(mimeType, MimeTypeBT):
		return parseBT(raw)
	case strings.EqualFold(mimeType, MimeTypeDash):
		return parseDash(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMimeType, mimeType)
	}
}

func decodeBase64(payload []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(payload))
	if raw, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(trimmed)
}

func parseBT(raw []byte) (*source.StreamDescriptor, error) {
	var bt btManifest
	if err := json.Unmarshal(raw, &bt); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedManifest, err)
	}
	if len(bt.URLs) == 0 || bt.URLs[0] == "" {
		return nil, fmt.Errorf("%w: no stream urls", ErrMalformedManifest)
	}

	return &source.StreamDescriptor{
		Codec:    NormalizeCodec(bt.Codecs),
		KeyToken: bt.KeyID,
		MimeType: MimeTypeBT,
		URLs:     bt.URLs,
	}, nil
}

func parseDash(raw []byte) (*source.StreamDescriptor, error) {
	doc := xmlnsRe.ReplaceAllString(string(raw), "")

	var mpd Manifest
	if err := xml.Unmarshal([]byte(doc), &mpd); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedManifest, err)
	}

	for _, period := range mpd.Periods {
		periodBase := joinURL(mpd.BaseURL, period.BaseURL)
		for _, set := range period.AdaptationSets {
			if !strings.EqualFold(set.ContentType, "audio") {
				continue
			}
			setBase := joinURL(periodBase, set.BaseURL)
			for _, rep := range set.Representations {
				urls := rep.SegmentRefs(joinURL(setBase, rep.BaseURL))
				if len(urls) == 0 {
					continue
				}
				return &source.StreamDescriptor{
					Codec:    NormalizeCodec(rep.Codecs),
					MimeType: MimeTypeDash,
					URLs:     urls,
				}, nil
			}
		}
	}

	return nil, ErrNoPlayableRepresentation
}

// SegmentRefs assembles the ordered segment URL list for the representation:
// the initialization reference first, then each media segment in timeline
// order.
func (r *Representation) SegmentRefs(base string) []string {
	switch {
	case r.SegmentTemplate != nil:
		return r.SegmentTemplate.expand(base, r.ID)
	case r.SegmentList != nil:
		return r.SegmentList.refs(base)
	case r.BaseURL != "":
		return []string{base}
	default:
		return nil
	}
}

func (t *SegmentTemplate) expand(base, repID string) []string {
	if t.Media == "" || t.Timeline == nil || len(t.Timeline.Entries) == 0 {
		return nil
	}

	var refs []string
	if t.Initialization != "" {
		refs = append(refs, joinURL(base, substitute(t.Initialization, repID, 0, 0)))
	}

	number := 1
	if t.StartNumber != nil {
		number = *t.StartNumber
	}

	var currentTime int64
	for _, entry := range t.Timeline.Entries {
		if entry.StartTime != nil {
			currentTime = *entry.StartTime
		}
		for i := 0; i <= entry.Repeat; i++ {
			refs = append(refs, joinURL(base, substitute(t.Media, repID, number, currentTime)))
			number++
			currentTime += entry.Duration
		}
	}
	return refs
}

func (l *SegmentList) refs(base string) []string {
	var refs []string
	if l.Initialization != nil && l.Initialization.SourceURL != "" {
		refs = append(refs, joinURL(base, l.Initialization.SourceURL))
	}
	for _, seg := range l.SegmentURLs {
		if seg.Media != "" {
			refs = append(refs, joinURL(base, seg.Media))
		}
	}
	return refs
}

func substitute(pattern, repID string, number int, time int64) string {
	return templateVarRe.ReplaceAllStringFunc(pattern, func(match string) string {
		groups := templateVarRe.FindStringSubmatch(match)
		name, width := groups[1], groups[2]

		var value string
		switch name {
		case "Number":
			value = strconv.Itoa(number)
		case "Time":
			value = strconv.FormatInt(time, 10)
		case "RepresentationID":
			return repID
		default:
			return match
		}

		if width != "" {
			return fmt.Sprintf("%"+width[1:], mustAtoi(value))
		}
		return value
	})
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func joinURL(base, ref string) string {
	if ref == "" {
		return base
	}
	if base == "" {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// NormalizeCodec maps MP4-family codec tags to the generic AAC label used for
// extension guessing. Other tags pass through unchanged.
func NormalizeCodec(codec string) string {
	if strings.HasPrefix(strings.ToUpper(codec), "MP4A") {
		return "AAC"
	}
	return codec
}
