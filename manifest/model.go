// Package manifest parses provider stream manifests into normalized
// stream descriptors. Two wire formats are understood: an opaque-URL
// JSON blob and a DASH MPD document.
package manifest

import "encoding/xml"

// Manifest is the root of a parsed DASH document. The tree is built once per
// parse, read for descriptor extraction and then discarded.
type Manifest struct {
	XMLName xml.Name `xml:"MPD"`
	BaseURL string   `xml:"BaseURL"`
	Periods []Period `xml:"Period"`
}

type Period struct {
	BaseURL        string          `xml:"BaseURL"`
	AdaptationSets []AdaptationSet `xml:"AdaptationSet"`
}

type AdaptationSet struct {
	ContentType     string           `xml:"contentType,attr"`
	BaseURL         string           `xml:"BaseURL"`
	Representations []Representation `xml:"Representation"`
}

type Representation struct {
	ID              string           `xml:"id,attr"`
	Bandwidth       int              `xml:"bandwidth,attr"`
	Codecs          string           `xml:"codecs,attr"`
	BaseURL         string           `xml:"BaseURL"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
	SegmentList     *SegmentList     `xml:"SegmentList"`
}

type SegmentTemplate struct {
	Media                  string           `xml:"media,attr"`
	Initialization         string           `xml:"initialization,attr"`
	StartNumber            *int             `xml:"startNumber,attr"`
	Timescale              int64            `xml:"timescale,attr"`
	PresentationTimeOffset int64            `xml:"presentationTimeOffset,attr"`
	Timeline               *SegmentTimeline `xml:"SegmentTimeline"`
}

type SegmentTimeline struct {
	Entries []TimelineEntry `xml:"S"`
}

// TimelineEntry describes one run of equal-duration segments. The entry
// produces R+1 segments.
type TimelineEntry struct {
	StartTime *int64 `xml:"t,attr"`
	Duration  int64  `xml:"d,attr"`
	Repeat    int    `xml:"r,attr"`
}

type SegmentList struct {
	Initialization *Initialization `xml:"Initialization"`
	SegmentURLs    []SegmentURL    `xml:"SegmentURL"`
}

type Initialization struct {
	SourceURL string `xml:"sourceURL,attr"`
}

type SegmentURL struct {
	Media string `xml:"media,attr"`
}
