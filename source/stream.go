package source

// StreamDescriptor is the resolved description of a playable stream: codec,
// the quality tier that was actually granted, an optional encryption key token
// and the ordered list of segment (or single-file) URLs.
type StreamDescriptor struct {
	// Codec label, normalized ("FLAC", "AAC", ...).
	Codec string `json:"codec"`
	// Quality tier that the provider actually granted.
	Quality string `json:"quality"`
	// Opaque encryption key token. Empty for unencrypted streams.
	KeyToken string `json:"key_token,omitempty"`
	// MIME type of the manifest the descriptor was parsed from.
	MimeType string `json:"mime_type"`
	// Ordered segment references. A single-URL stream has exactly one entry.
	URLs []string `json:"urls"`
}

// Resolved reports whether the descriptor carries at least one stream URL.
func (d *StreamDescriptor) Resolved() bool {
	return d != nil && len(d.URLs) > 0
}

// Primary returns the first stream URL, used for the reachability probe and
// for single-file downloads.
func (d *StreamDescriptor) Primary() string {
	if !d.Resolved() {
		return ""
	}
	return d.URLs[0]
}

// Encrypted reports whether the stream payload needs decryption before use.
func (d *StreamDescriptor) Encrypted() bool {
	return d != nil && d.KeyToken != ""
}
