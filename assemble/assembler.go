// Package assemble turns a resolved stream descriptor into a finished audio
// file: ordered segment download, decryption and best-effort container remux.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/songdl-cli/songdl/filesystem"
	"github.com/songdl-cli/songdl/key"
	"github.com/songdl-cli/songdl/log"
	"github.com/songdl-cli/songdl/network"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/util"
	"github.com/songdl-cli/songdl/where"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var ErrNoStream = errors.New("song carries no resolved stream")

// Assembler downloads and finalizes one stream at a time. Safe for concurrent
// use across songs.
type Assembler struct {
	fetcher            *network.Fetcher
	segmentConcurrency int
}

func New(fetcher *network.Fetcher) *Assembler {
	concurrency := viper.GetInt(key.DownloadSegmentConcurrency)
	if concurrency < 1 {
		concurrency = 1
	}
	return &Assembler{
		fetcher:            fetcher,
		segmentConcurrency: concurrency,
	}
}

// Assemble produces the final audio file for a song in its work directory.
// onAdvance receives downloaded byte deltas for progress reporting; it may be
// nil. Returns the saved path and the extension the file actually ended up
// with. Scratch files are removed on every exit path.
func (a *Assembler) Assemble(ctx context.Context, song *source.SongInfo, onAdvance func(delta int64)) (savedPath, finalExt string, err error) {
	desc := song.Stream
	if !desc.Resolved() {
		return "", "", ErrNoStream
	}
	if onAdvance == nil {
		onAdvance = func(int64) {}
	}

	fs := filesystem.API()

	scratch := filepath.Join(where.Temp(), "assemble-"+uuid.New().String())
	if err := fs.MkdirAll(scratch, os.ModePerm); err != nil {
		return "", "", err
	}
	defer func() {
		if removeErr := fs.RemoveAll(scratch); removeErr != nil {
			log.Warnf("could not clean scratch dir %s: %v", scratch, removeErr)
		}
	}()

	nativeExt := guessNativeExt(desc)
	targetExt := song.Extension
	if targetExt == "" {
		targetExt = nativeExt
	}

	finalExt = targetExt
	remux := remuxRequired(targetExt, nativeExt, desc.Codec)
	if remux && !remuxReady() {
		log.Warnf("ffmpeg unavailable, keeping %s container for %s", nativeExt, song.Title)
		finalExt, remux = nativeExt, false
	}
	if !remux && targetExt != nativeExt {
		// without a remux the container stays whatever came down
		finalExt = nativeExt
	}

	downloadPath := filepath.Join(scratch, "download"+nativeExt)
	if err := a.downloadSegments(ctx, desc.URLs, downloadPath, onAdvance); err != nil {
		return "", "", fmt.Errorf("segment download: %w", err)
	}

	assembledPath := downloadPath
	if desc.Encrypted() {
		decryptedPath := filepath.Join(scratch, "decrypted"+nativeExt)
		if err := a.decryptFile(downloadPath, decryptedPath, desc.KeyToken); err != nil {
			return "", "", fmt.Errorf("decrypt: %w", err)
		}
		assembledPath = decryptedPath
	}

	if remux {
		remuxPath := filepath.Join(scratch, util.FileStem(assembledPath)+".remux.flac")
		if err := remuxToFlac(ctx, assembledPath, remuxPath); err != nil {
			log.Warnf("remux failed for %s, keeping %s container", song.Title, nativeExt)
			finalExt = nativeExt
		} else {
			assembledPath = remuxPath
		}
	}

	if err := fs.MkdirAll(song.WorkDir(), os.ModePerm); err != nil {
		return "", "", err
	}

	base := song.FileBase(viper.GetBool(key.DownloadTrackNumberPrefix))
	savedPath, err = finalize(assembledPath, song.WorkDir(), base, finalExt)
	if err != nil {
		return "", "", err
	}
	return savedPath, finalExt, nil
}

// finalizeMu serializes path reservation and the final move: two concurrent
// downloads with the same base name must never select the same path.
var finalizeMu sync.Mutex

func finalize(assembledPath, dir, base, ext string) (string, error) {
	finalizeMu.Lock()
	defer finalizeMu.Unlock()

	savedPath, err := uniquePath(dir, base, ext)
	if err != nil {
		return "", err
	}
	if err := moveFile(assembledPath, savedPath); err != nil {
		return "", err
	}
	return savedPath, nil
}

// guessNativeExt inspects the stream URLs, then the codec, to decide which
// container the raw download is in.
func guessNativeExt(desc *source.StreamDescriptor) string {
	for _, candidate := range desc.URLs {
		lowered := strings.ToLower(strings.SplitN(candidate, "?", 2)[0])
		for _, ext := range []string{".flac", ".mp4", ".m4a", ".m4b", ".mp3", ".ogg", ".aac"} {
			if strings.HasSuffix(lowered, ext) {
				if ext == ".mp4" {
					return ".m4a"
				}
				return ext
			}
		}
	}

	codec := strings.ToLower(desc.Codec)
	if strings.Contains(codec, "flac") {
		return ".flac"
	}
	return ".m4a"
}

type segment struct {
	index int
	data  []byte
}

// downloadSegments fetches every URL and concatenates the bodies into dst in
// manifest order. Fetches run concurrently; writes are serialized by index.
func (a *Assembler) downloadSegments(ctx context.Context, urls []string, dst string, onAdvance func(int64)) error {
	out, err := filesystem.API().Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if len(urls) == 1 {
		return a.streamInto(ctx, urls[0], out, onAdvance)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.segmentConcurrency)

	results := make(chan segment, a.segmentConcurrency)
	fetchErr := make(chan error, 1)

	go func() {
		defer close(results)
		for i, rawURL := range urls {
			i, rawURL := i, rawURL
			g.Go(func() error {
				data, err := a.fetchSegment(ctx, rawURL)
				if err != nil {
					return err
				}
				select {
				case results <- segment{index: i, data: data}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		}
		fetchErr <- g.Wait()
	}()

	pending := make(map[int][]byte)
	nextIndex := 0
	for res := range results {
		pending[res.index] = res.data
		for {
			data, ok := pending[nextIndex]
			if !ok {
				break
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			onAdvance(int64(len(data)))
			delete(pending, nextIndex)
			nextIndex++
		}
	}

	if err := <-fetchErr; err != nil {
		return err
	}
	if nextIndex != len(urls) {
		return fmt.Errorf("expected %d segments, wrote %d", len(urls), nextIndex)
	}
	return nil
}

func (a *Assembler) fetchSegment(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := a.fetcher.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("segment %s: unexpected status %s", rawURL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (a *Assembler) streamInto(ctx context.Context, rawURL string, out afero.File, onAdvance func(int64)) error {
	resp, err := a.fetcher.Get(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("stream %s: unexpected status %s", rawURL, resp.Status)
	}

	buf := make([]byte, 1<<20)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			onAdvance(int64(n))
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// decryptFile unwraps the security token and decrypts src into dst.
func (a *Assembler) decryptFile(src, dst, token string) error {
	streamKey, nonce, err := UnwrapSecurityToken(token)
	if err != nil {
		return err
	}

	fs := filesystem.API()
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	return decryptStream(streamKey, nonce, in, out)
}

// uniquePath appends _1, _2, ... to the base name until no file at the path
// exists. Existing files are never overwritten.
func uniquePath(dir, base, ext string) (string, error) {
	fs := filesystem.API()

	candidate := filepath.Join(dir, base+ext)
	for idx := 1; ; idx++ {
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, idx, ext))
	}
}

// moveFile renames when possible and falls back to a copy across filesystems.
func moveFile(src, dst string) error {
	fs := filesystem.API()

	if err := fs.Rename(src, dst); err == nil {
		return nil
	}

	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return fs.Remove(src)
}
