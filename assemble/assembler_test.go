package assemble

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/songdl-cli/songdl/filesystem"
	"github.com/songdl-cli/songdl/key"
	"github.com/songdl-cli/songdl/network"
	"github.com/songdl-cli/songdl/source"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
	viper.Set(key.NetworkMaxRetries, 1)
	viper.Set(key.DownloadSegmentConcurrency, 3)
	viper.Set(key.DownloadTrackNumberPrefix, false)
}

// wrapToken builds a security token the way the provider does: CBC-encrypt
// key||nonce||padding under the master key and prepend the IV.
func wrapToken(streamKey, nonce []byte) string {
	master, _ := base64.StdEncoding.DecodeString(masterKey)

	plaintext := make([]byte, 32)
	copy(plaintext, streamKey)
	copy(plaintext[16:], nonce)

	iv := bytes.Repeat([]byte{0x24}, 16)
	block, _ := aes.NewCipher(master)

	wrapped := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(wrapped, plaintext)

	return base64.StdEncoding.EncodeToString(append(iv, wrapped...))
}

func ctrEncrypt(streamKey, nonce, plaintext []byte) []byte {
	block, _ := aes.NewCipher(streamKey)
	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)

	out := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(out, plaintext)
	return out
}

func TestUnwrapSecurityToken(t *testing.T) {
	Convey("Security token unwrap", t, func() {
		streamKey := bytes.Repeat([]byte{0x11}, 16)
		nonce := bytes.Repeat([]byte{0x22}, 8)

		Convey("Recovers the wrapped key and nonce", func() {
			gotKey, gotNonce, err := UnwrapSecurityToken(wrapToken(streamKey, nonce))
			So(err, ShouldBeNil)
			So(gotKey, ShouldResemble, streamKey)
			So(gotNonce, ShouldResemble, nonce)
		})

		Convey("Rejects garbage tokens", func() {
			_, _, err := UnwrapSecurityToken("not base64 at all !!!")
			So(err, ShouldNotBeNil)

			_, _, err = UnwrapSecurityToken(base64.StdEncoding.EncodeToString([]byte("short")))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDecryptStream(t *testing.T) {
	Convey("Stream decryption", t, func() {
		streamKey := bytes.Repeat([]byte{0x33}, 16)
		nonce := bytes.Repeat([]byte{0x44}, 8)
		plaintext := []byte("fLaC and then a lot of audio frames following the header")

		encrypted := ctrEncrypt(streamKey, nonce, plaintext)

		var decrypted bytes.Buffer
		err := decryptStream(streamKey, nonce, bytes.NewReader(encrypted), &decrypted)

		So(err, ShouldBeNil)
		So(decrypted.Bytes(), ShouldResemble, plaintext)
	})
}

func TestGuessNativeExt(t *testing.T) {
	Convey("Native extension guessing", t, func() {
		cases := []struct {
			desc *source.StreamDescriptor
			want string
		}{
			{&source.StreamDescriptor{URLs: []string{"http://cdn/track.flac?token=x"}}, ".flac"},
			{&source.StreamDescriptor{URLs: []string{"http://cdn/seg.mp4"}}, ".m4a"},
			{&source.StreamDescriptor{URLs: []string{"http://cdn/track.mp3"}}, ".mp3"},
			{&source.StreamDescriptor{URLs: []string{"http://cdn/opaque"}, Codec: "flac"}, ".flac"},
			{&source.StreamDescriptor{URLs: []string{"http://cdn/opaque"}, Codec: "AAC"}, ".m4a"},
		}
		for _, c := range cases {
			So(guessNativeExt(c.desc), ShouldEqual, c.want)
		}
	})
}

func TestRemuxRequired(t *testing.T) {
	Convey("Remux decision", t, func() {
		So(remuxRequired(".flac", ".m4a", "flac"), ShouldBeTrue)
		So(remuxRequired(".flac", ".flac", "flac"), ShouldBeFalse)
		So(remuxRequired(".m4a", ".m4a", "flac"), ShouldBeFalse)
		So(remuxRequired(".flac", ".m4a", "mp4a.40.2"), ShouldBeFalse)
	})
}

func TestAssemble(t *testing.T) {
	Convey("Given a served single-file stream", t, func() {
		payload := []byte("fLaC...........this stands in for a full flac stream")

		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/track.flac", func(w http.ResponseWriter, r *http.Request) {
			w.Write(payload)
		})

		assembler := New(network.NewFetcher(nil))
		newSong := func(dir string) *source.SongInfo {
			song := &source.SongInfo{
				Identifier: "1",
				Title:      "Time",
				Extension:  ".flac",
				Stream: &source.StreamDescriptor{
					Codec: "flac",
					URLs:  []string{server.URL + "/track.flac"},
				},
			}
			song.AssignWorkDir(dir)
			return song
		}

		Convey("A second download of the same title never overwrites", func() {
			dir := "/downloads/Pink Floyd/TDSOTM"

			first, firstExt, err := assembler.Assemble(context.Background(), newSong(dir), nil)
			So(err, ShouldBeNil)
			So(firstExt, ShouldEqual, ".flac")
			So(first, ShouldEqual, dir+"/Time.flac")

			second, _, err := assembler.Assemble(context.Background(), newSong(dir), nil)
			So(err, ShouldBeNil)
			So(second, ShouldEqual, dir+"/Time_1.flac")

			third, _, err := assembler.Assemble(context.Background(), newSong(dir), nil)
			So(err, ShouldBeNil)
			So(third, ShouldEqual, dir+"/Time_2.flac")

			saved, err := filesystem.API().ReadFile(first)
			So(err, ShouldBeNil)
			So(saved, ShouldResemble, payload)
		})

		Convey("Concurrent downloads of the same title land on distinct paths", func() {
			dir := "/downloads/concurrent"
			payloads := map[string][]byte{
				"/one.flac": []byte("fLaC....first distinct stream body...."),
				"/two.flac": []byte("fLaC....second distinct stream body..."),
			}
			for path, body := range payloads {
				body := body
				mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
					w.Write(body)
				})
			}

			paths := make([]string, 2)
			errs := make([]error, 2)
			var wg sync.WaitGroup
			for i, streamPath := range []string{"/one.flac", "/two.flac"} {
				i, streamPath := i, streamPath
				wg.Add(1)
				go func() {
					defer wg.Done()
					song := newSong(dir)
					song.Identifier = fmt.Sprintf("c%d", i)
					song.Stream.URLs = []string{server.URL + streamPath}
					paths[i], _, errs[i] = assembler.Assemble(context.Background(), song, nil)
				}()
			}
			wg.Wait()

			So(errs[0], ShouldBeNil)
			So(errs[1], ShouldBeNil)
			So(paths[0], ShouldNotEqual, paths[1])

			saved := make(map[string]bool)
			for _, p := range paths {
				body, err := filesystem.API().ReadFile(p)
				So(err, ShouldBeNil)
				saved[string(body)] = true
			}
			So(saved[string(payloads["/one.flac"])], ShouldBeTrue)
			So(saved[string(payloads["/two.flac"])], ShouldBeTrue)
		})

		Convey("Progress deltas add up to the stream size", func() {
			var total int64
			_, _, err := assembler.Assemble(context.Background(), newSong("/downloads/progress"), func(delta int64) {
				total += delta
			})
			So(err, ShouldBeNil)
			So(total, ShouldEqual, int64(len(payload)))
		})
	})

	Convey("Given a served multi-segment stream", t, func() {
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		segments := 6
		for i := 0; i < segments; i++ {
			i := i
			mux.HandleFunc(fmt.Sprintf("/seg/%d", i), func(w http.ResponseWriter, r *http.Request) {
				// later segments answer first to exercise write ordering
				time.Sleep(time.Duration(segments-i) * 10 * time.Millisecond)
				fmt.Fprintf(w, "segment-%d|", i)
			})
		}

		var urls []string
		var want bytes.Buffer
		for i := 0; i < segments; i++ {
			urls = append(urls, fmt.Sprintf("%s/seg/%d", server.URL, i))
			fmt.Fprintf(&want, "segment-%d|", i)
		}

		song := &source.SongInfo{
			Identifier:  "2",
			Title:       "Echoes",
			TrackNumber: mo.Some(1),
			Extension:   ".flac",
			Stream: &source.StreamDescriptor{
				Codec: "flac",
				URLs:  urls,
			},
		}
		song.AssignWorkDir("/downloads/segments")

		Convey("Segments concatenate in manifest order", func() {
			saved, _, err := New(network.NewFetcher(nil)).Assemble(context.Background(), song, nil)
			So(err, ShouldBeNil)

			got, err := filesystem.API().ReadFile(saved)
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, want.String())
		})
	})

	Convey("Given an encrypted stream", t, func() {
		streamKey := bytes.Repeat([]byte{0x55}, 16)
		nonce := bytes.Repeat([]byte{0x66}, 8)
		plaintext := []byte("decrypted audio payload, definitely music")

		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/enc.flac", func(w http.ResponseWriter, r *http.Request) {
			w.Write(ctrEncrypt(streamKey, nonce, plaintext))
		})

		song := &source.SongInfo{
			Identifier: "3",
			Title:      "Locked",
			Extension:  ".flac",
			Stream: &source.StreamDescriptor{
				Codec:    "flac",
				KeyToken: wrapToken(streamKey, nonce),
				URLs:     []string{server.URL + "/enc.flac"},
			},
		}
		song.AssignWorkDir("/downloads/encrypted")

		Convey("The saved file holds the decrypted bytes", func() {
			saved, _, err := New(network.NewFetcher(nil)).Assemble(context.Background(), song, nil)
			So(err, ShouldBeNil)

			got, err := filesystem.API().ReadFile(saved)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, plaintext)
		})
	})

	Convey("A song without a resolved stream fails fast", t, func() {
		song := &source.SongInfo{Identifier: "4", Title: "Empty"}
		_, _, err := New(network.NewFetcher(nil)).Assemble(context.Background(), song, nil)
		So(err, ShouldEqual, ErrNoStream)
	})
}
