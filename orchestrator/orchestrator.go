// Package orchestrator drives the search and download phases: bounded worker
// pools, deduplication, work directory assignment and progress aggregation.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/songdl-cli/songdl/assemble"
	"github.com/songdl-cli/songdl/filesystem"
	"github.com/songdl-cli/songdl/history"
	"github.com/songdl-cli/songdl/internal/cache"
	"github.com/songdl-cli/songdl/key"
	"github.com/songdl-cli/songdl/log"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/tag"
	"github.com/songdl-cli/songdl/util"
	"github.com/songdl-cli/songdl/where"
	"github.com/spf13/viper"
)

const (
	searchSnapshotName   = "search_results.json"
	downloadSnapshotName = "download_results.json"
)

// Orchestrator coordinates one or more providers through a full batch.
type Orchestrator struct {
	sources []source.Source
	tracker *Tracker

	mu         sync.Mutex
	assemblers map[string]*assemble.Assembler
}

func New(sources ...source.Source) *Orchestrator {
	return &Orchestrator{
		sources:    sources,
		tracker:    NewTracker(),
		assemblers: make(map[string]*assemble.Assembler),
	}
}

// Tracker exposes the progress aggregate for rendering.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

type searchJob struct {
	src source.Source
	url string
}

// Search fans the query out across every source's paginated search URLs,
// deduplicates the hits and assigns work directories.
func (o *Orchestrator) Search(ctx context.Context, query string) []*source.SongInfo {
	var jobs []searchJob
	for _, src := range o.sources {
		for _, rawURL := range src.SearchRequests(query) {
			jobs = append(jobs, searchJob{src: src, url: rawURL})
		}
	}

	pages, errs := Run(ctx, jobs, viper.GetInt(key.SearchConcurrency), func(ctx context.Context, job searchJob) ([]*source.SongInfo, error) {
		task := o.tracker.Task(fmt.Sprintf("%s.search %s", job.src.ID(), job.url))
		task.Start()

		cacheKey := cache.GenerateKey(job.url, job.src.ID())

		var songs []*source.SongInfo
		if !cache.Read(cacheKey, &songs) {
			var err error
			songs, err = job.src.SearchPage(ctx, job.url)
			if err != nil {
				task.Fail(err.Error())
				return nil, err
			}
			if err := cache.Write(cacheKey, songs); err != nil {
				log.Warnf("search cache write: %v", err)
			}
		}

		task.SetTotal(int64(len(songs)))
		task.Succeed()
		return songs, nil
	})

	for _, err := range errs {
		log.Warnf("search page failed: %v", err)
	}

	return o.prepare(lo.Flatten(pages))
}

// Resolve expands a resource URL through the first source that accepts it.
func (o *Orchestrator) Resolve(ctx context.Context, rawURL string) ([]*source.SongInfo, error) {
	var lastErr error
	for _, src := range o.sources {
		songs, err := src.Resolve(ctx, rawURL)
		if err != nil {
			lastErr = err
			continue
		}
		return o.prepare(songs), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no source accepts %s", rawURL)
	}
	return nil, lastErr
}

// prepare deduplicates, filters by history, assigns work directories and
// snapshots the accepted set.
func (o *Orchestrator) prepare(songs []*source.SongInfo) []*source.SongInfo {
	songs = Dedup(songs)

	if viper.GetBool(key.DownloadSkipHistory) {
		songs = lo.Filter(songs, func(song *source.SongInfo, _ int) bool {
			if history.Contains(song.SourceName, song.Identifier) {
				log.Infof("skipping %s, already downloaded", song.Title)
				return false
			}
			return true
		})
	}

	o.assignWorkDirs(songs)
	writeSnapshot(searchSnapshotName, songs)
	return songs
}

// Dedup drops songs whose identifier was already seen. The first occurrence
// wins; input order is preserved.
func Dedup(songs []*source.SongInfo) []*source.SongInfo {
	seen := make(map[string]struct{}, len(songs))
	out := make([]*source.SongInfo, 0, len(songs))

	for _, song := range songs {
		if song == nil || song.Identifier == "" {
			continue
		}
		if _, dup := seen[song.Identifier]; dup {
			continue
		}
		seen[song.Identifier] = struct{}{}
		out = append(out, song)
	}
	return out
}

// assignWorkDirs derives <root>/<artist>/<album> for every song. Artist
// resolution is memoized per album key so tracks of one album agree on a
// directory even when their artist candidates differ.
func (o *Orchestrator) assignWorkDirs(songs []*source.SongInfo) {
	root := downloadRoot()
	format := viper.GetString(key.DownloadFormat)
	artistByAlbum := make(map[string]string)

	for _, song := range songs {
		album := source.AlbumOf(song)
		albumKey := strings.ToLower(album)

		artist, ok := artistByAlbum[albumKey]
		if !ok {
			artist = source.ArtistOf(song)
			artistByAlbum[albumKey] = artist
		}

		song.AssignWorkDir(filepath.Join(
			root,
			util.SanitizeFilenameOr(artist, "Unknown Artist"),
			util.SanitizeFilenameOr(album, "Unknown Album"),
		))
		if song.Extension == "" {
			song.Extension = format
		}
	}
}

// Download drains the song list through the bounded download pool and
// snapshots the successful results.
func (o *Orchestrator) Download(ctx context.Context, songs []*source.SongInfo) []*source.DownloadResult {
	results, errs := Run(ctx, songs, viper.GetInt(key.DownloadConcurrency), o.downloadOne)

	for _, err := range errs {
		log.Warnf("download failed: %v", err)
	}

	succeeded, failed := o.tracker.Counts()
	log.Debugf("tracker after batch: %d tasks succeeded, %d failed", succeeded, failed)

	writeSnapshot(downloadSnapshotName, results)
	return results
}

func (o *Orchestrator) downloadOne(ctx context.Context, song *source.SongInfo) (*source.DownloadResult, error) {
	task := o.tracker.Task(song.Title)
	task.Start()

	fail := func(err error) (*source.DownloadResult, error) {
		task.Fail(err.Error())
		return nil, fmt.Errorf("%s: %w", song.Title, err)
	}

	src, err := o.sourceByID(song.SourceName)
	if err != nil {
		return fail(err)
	}

	desc, err := src.StreamOf(ctx, song)
	if err != nil {
		return fail(err)
	}
	song.Stream = desc

	if song.FileSize > 0 {
		task.SetTotal(song.FileSize)
	}

	if viper.GetBool(key.DownloadLyrics) && song.Lyrics == "" {
		if lyrics, err := src.LyricsOf(ctx, song); err == nil {
			song.Lyrics = lyrics
		}
	}

	savedPath, finalExt, err := o.assemblerFor(src).Assemble(ctx, song, task.Advance)
	if err != nil {
		return fail(err)
	}

	if finalExt != song.Extension {
		log.Warnf("%s saved as %s instead of %s", song.Title, finalExt, song.Extension)
	}

	if err := tag.Write(savedPath, song); err != nil {
		log.Warnf("tagging %s failed: %v", savedPath, err)
	}

	result := &source.DownloadResult{
		Song:           song,
		SavedPath:      savedPath,
		FinalExtension: finalExt,
	}

	if viper.GetBool(key.HistorySaveOnDownload) {
		if err := history.Save(result); err != nil {
			log.Warnf("history save failed: %v", err)
		}
	}

	task.Succeed()
	return result, nil
}

func (o *Orchestrator) sourceByID(id string) (source.Source, error) {
	for _, src := range o.sources {
		if src.ID() == id {
			return src, nil
		}
	}
	return nil, fmt.Errorf("unknown source %q", id)
}

func (o *Orchestrator) assemblerFor(src source.Source) *assemble.Assembler {
	o.mu.Lock()
	defer o.mu.Unlock()

	if asm, ok := o.assemblers[src.ID()]; ok {
		return asm
	}
	asm := assemble.New(src.Transport())
	o.assemblers[src.ID()] = asm
	return asm
}

func downloadRoot() string {
	if custom := viper.GetString(key.DownloadDir); custom != "" {
		return custom
	}
	return where.Downloads()
}

// writeSnapshot serializes a batch snapshot under the download root for
// later inspection.
func writeSnapshot(name string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warnf("snapshot %s: %v", name, err)
		return
	}
	root := downloadRoot()
	if err := filesystem.API().MkdirAll(root, 0o755); err != nil {
		log.Warnf("snapshot %s: %v", name, err)
		return
	}
	if err := filesystem.API().WriteFile(filepath.Join(root, name), data, 0o644); err != nil {
		log.Warnf("snapshot %s: %v", name, err)
	}
}
