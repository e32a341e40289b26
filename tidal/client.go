package tidal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/songdl-cli/songdl/key"
	"github.com/songdl-cli/songdl/log"
	"github.com/songdl-cli/songdl/manifest"
	"github.com/songdl-cli/songdl/network"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/util"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

const (
	apiBaseURL      = "https://api.tidal.com/v1"
	playbackBaseURL = "https://tidal.com/v1"
	openAPIBaseURL  = "https://openapi.tidal.com/v2"

	// Page size for album and playlist track listings.
	listPageSize = 100
)

// Quality tiers in descending preference order. Entitlement varies per track,
// so each tier is probed until one yields a reachable stream.
var qualityLadder = []string{"HI_RES_LOSSLESS", "LOSSLESS", "HIGH", "LOW"}

var (
	ErrNoPlayableStream = errors.New("tidal: no playable stream found")
	ErrUnsupportedURL   = errors.New("tidal: unsupported resource url")
)

// Client implements the music source capabilities against the TIDAL API.
type Client struct {
	session *Session
	fetcher *network.Fetcher

	apiBase      string
	playbackBase string
	openAPIBase  string
}

// New builds a client around a loaded session.
func New(session *Session) *Client {
	return &Client{
		session:      session,
		fetcher:      network.NewFetcher(session),
		apiBase:      apiBaseURL,
		playbackBase: playbackBaseURL,
		openAPIBase:  openAPIBaseURL,
	}
}

// Session exposes the underlying session for login management.
func (c *Client) Session() *Session {
	return c.session
}

// Transport returns the authenticated fetcher, shared with the assembler.
func (c *Client) Transport() *network.Fetcher {
	return c.fetcher
}

func (c *Client) Name() string {
	return "TIDAL"
}

func (c *Client) ID() string {
	return "tidal"
}

// SearchRequests builds paginated search URLs for the query, honoring the
// configured page size and overall result limit.
func (c *Client) SearchRequests(query string) []string {
	pageSize := viper.GetInt(key.SearchPageSize)
	if pageSize <= 0 {
		pageSize = 10
	}
	limit := viper.GetInt(key.SearchLimit)
	if limit <= 0 {
		limit = pageSize
	}

	var urls []string
	for offset := 0; offset < limit; offset += pageSize {
		params := url.Values{
			"countryCode":         {c.session.CountryCode()},
			"query":               {query},
			"limit":               {strconv.Itoa(util.Min(pageSize, limit-offset))},
			"offset":              {strconv.Itoa(offset)},
			"includeContributors": {"true"},
		}
		urls = append(urls, c.apiBase+"/search?"+params.Encode())
	}
	return urls
}

// SearchPage fetches one search URL and normalizes the track hits.
func (c *Client) SearchPage(ctx context.Context, rawURL string) ([]*source.SongInfo, error) {
	body, err := c.fetchJSON(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}

	var songs []*source.SongInfo
	for _, item := range body.Get("tracks.items").Array() {
		if song := c.songFromRaw(item); song != nil {
			songs = append(songs, song)
		}
	}
	return songs, nil
}

// Resolve expands a TIDAL resource URL into its tracks.
func (c *Client) Resolve(ctx context.Context, rawURL string) ([]*source.SongInfo, error) {
	kind, id, err := parseResource(rawURL)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "track":
		body, err := c.fetchJSON(ctx, c.apiBase+"/tracks/"+id, map[string]string{
			"countryCode": c.session.CountryCode(),
		})
		if err != nil {
			return nil, err
		}
		song := c.songFromRaw(body)
		if song == nil {
			return nil, fmt.Errorf("track %s has no usable metadata", id)
		}
		return []*source.SongInfo{song}, nil
	case "album":
		return c.listTracks(ctx, c.apiBase+"/albums/"+id+"/tracks")
	case "playlist":
		return c.listTracks(ctx, c.apiBase+"/playlists/"+id+"/tracks")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}
}

// resourceRe matches the kind/id pair anywhere in a TIDAL URL path, which
// tolerates the browse/ prefix and trailing path noise.
var resourceRe = regexp.MustCompile(`(?i)(?:^|/)(?P<kind>track|album|playlist)/(?P<id>[^/]+)`)

// parseResource extracts the resource kind and identifier from a TIDAL URL.
func parseResource(rawURL string) (kind, id string, err error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}

	groups := util.ReGroups(resourceRe, parsed.Path)
	if groups["id"] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}
	return strings.ToLower(groups["kind"]), groups["id"], nil
}

// listTracks pages through a track listing endpoint until exhausted.
func (c *Client) listTracks(ctx context.Context, endpoint string) ([]*source.SongInfo, error) {
	var songs []*source.SongInfo

	for offset := 0; ; {
		body, err := c.fetchJSON(ctx, endpoint, map[string]string{
			"countryCode": c.session.CountryCode(),
			"limit":       strconv.Itoa(listPageSize),
			"offset":      strconv.Itoa(offset),
		})
		if err != nil {
			if offset == 0 {
				return nil, err
			}
			break
		}

		items := body.Get("items").Array()
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			// playlist items wrap the track object
			if wrapped := item.Get("track"); wrapped.Exists() {
				item = wrapped
			}
			if song := c.songFromRaw(item); song != nil {
				songs = append(songs, song)
			}
		}

		offset += len(items)
		total := body.Get("totalNumberOfItems")
		if len(items) < listPageSize || (total.Exists() && offset >= int(total.Int())) {
			break
		}
	}

	return songs, nil
}

// StreamOf walks the quality ladder for a track and returns the first
// descriptor whose primary URL passes the reachability probe.
func (c *Client) StreamOf(ctx context.Context, song *source.SongInfo) (*source.StreamDescriptor, error) {
	endpoint := c.playbackBase + "/tracks/" + song.Identifier + "/playbackinfo"

	for _, quality := range qualityLadder {
		body, err := c.fetchJSON(ctx, endpoint, map[string]string{
			"playbackmode":      "STREAM",
			"audioquality":      quality,
			"assetpresentation": "FULL",
		})
		if err != nil {
			log.Debugf("playback info for %s at %s: %s", song.Identifier, quality, err)
			continue
		}

		mimeType := body.Get("manifestMimeType").String()
		desc, err := manifest.Parse(mimeType, []byte(body.Get("manifest").String()))
		if err != nil {
			log.Debugf("manifest for %s at %s: %s", song.Identifier, quality, err)
			continue
		}

		if desc.KeyToken == "" {
			desc.KeyToken = body.Get("securityToken").String()
		}
		if granted := body.Get("audioQuality").String(); granted != "" {
			desc.Quality = granted
		} else {
			desc.Quality = quality
		}

		ok, contentLength, err := c.fetcher.Probe(ctx, desc.Primary())
		if err != nil || !ok {
			log.Debugf("probe for %s at %s failed", song.Identifier, quality)
			continue
		}
		if contentLength > 0 {
			song.FileSize = contentLength
		}
		return desc, nil
	}

	return nil, ErrNoPlayableStream
}

// LyricsOf fetches LRC lyrics for a track. Missing lyrics are not an error.
func (c *Client) LyricsOf(ctx context.Context, song *source.SongInfo) (string, error) {
	body, err := c.fetchJSON(ctx, c.openAPIBase+"/tracks/"+song.Identifier, map[string]string{
		"countryCode": c.session.CountryCode(),
		"include":     "lyrics",
	})
	if err != nil {
		return "", nil
	}
	return body.Get("included.0.attributes.lrcText").String(), nil
}

// songFromRaw normalizes one raw track object.
func (c *Client) songFromRaw(item gjson.Result) *source.SongInfo {
	id := item.Get("id")
	if !id.Exists() || id.String() == "" {
		return nil
	}

	raw := []byte(item.Raw)
	song := &source.SongInfo{
		Identifier:       id.String(),
		SourceName:       c.ID(),
		Title:            strings.TrimSpace(item.Get("title").String()),
		ArtistCandidates: source.ProbeStrings(raw, "artists.#.name", "artist.name"),
		Album:            strings.TrimSpace(item.Get("album.title").String()),
		TrackNumber: source.ProbeInt(raw,
			"trackNumber", "number", "trackNumberOnAlbum", "sequence", "trackNumberOnPlaylist"),
		DiscNumber:      source.ProbeInt(raw, "volumeNumber"),
		DurationSeconds: int(item.Get("duration").Int()),
		ISRC:            item.Get("isrc").String(),
		RawPayload:      raw,
	}
	song.Duration = util.SecondsToClock(song.DurationSeconds)

	if date := item.Get("album.releaseDate").String(); date != "" {
		song.Date = date
	} else if started := item.Get("streamStartDate").String(); len(started) >= 10 {
		song.Date = started[:10]
	}

	source.FillFromRaw(song)
	return song
}

// fetchJSON performs an authenticated GET and parses the JSON body.
func (c *Client) fetchJSON(ctx context.Context, rawURL string, params map[string]string) (gjson.Result, error) {
	var opts *network.Options
	if params != nil {
		opts = &network.Options{Params: params}
	}

	resp, err := c.fetcher.Get(ctx, rawURL, opts)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return gjson.Result{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(body), nil
}
