// Package history provides the implementation for tracking and persisting completed downloads.
package history

import (
	"github.com/metafates/gache"
	"github.com/songdl-cli/songdl/filesystem"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/where"
)

// cacher provides an abstracted, disk-backed registry for download records.
var cacher = gache.New[map[string]*SavedTrack](
	&gache.Options{
		Path:       where.History(),
		FileSystem: &filesystem.GacheFs{},
	},
)

// Get returns the complete collection of download records from the persistent store.
func Get() (map[string]*SavedTrack, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*SavedTrack), nil
	}
	return cached, nil
}

// Save persists a completed download to the history registry. Saving the same
// track again replaces the previous record.
func Save(result *source.DownloadResult) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	record := newSavedTrack(result)
	saved[record.encode()] = record

	return cacher.Set(saved)
}

// Contains reports whether a track from the given source was downloaded before.
func Contains(sourceID, identifier string) bool {
	saved, err := Get()
	if err != nil {
		return false
	}

	probe := SavedTrack{SourceID: sourceID, Identifier: identifier}
	_, exists := saved[probe.encode()]
	return exists
}

// Remove permanently deletes a specific download record from the history registry.
func Remove(track *SavedTrack) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	delete(saved, track.encode())
	return cacher.Set(saved)
}
