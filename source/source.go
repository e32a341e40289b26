// Package source defines the domain models and interfaces for music discovery and retrieval.
package source

import (
	"context"

	"github.com/songdl-cli/songdl/network"
)

// Source defines the required capabilities for a music provider.
type Source interface {
	// Name returns the unique identifier for the provider.
	Name() string

	// ID returns the unique identifier of the source.
	ID() string

	// Transport returns the authenticated fetcher used for stream downloads.
	Transport() *network.Fetcher

	// SearchRequests builds the paginated search URLs for a query. The
	// caller fans the URLs out to a worker pool.
	SearchRequests(query string) []string

	// SearchPage fetches one search URL and normalizes its hits.
	SearchPage(ctx context.Context, rawURL string) ([]*SongInfo, error)

	// Resolve expands a provider resource URL (track, album or playlist)
	// into the individual tracks it refers to.
	Resolve(ctx context.Context, rawURL string) ([]*SongInfo, error)

	// StreamOf negotiates the best reachable quality tier for a track and
	// returns its resolved stream descriptor.
	StreamOf(ctx context.Context, song *SongInfo) (*StreamDescriptor, error)

	// LyricsOf fetches lyrics for a track. Missing lyrics are not an error;
	// the provider returns an empty string instead.
	LyricsOf(ctx context.Context, song *SongInfo) (string, error)
}
