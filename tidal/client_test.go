package tidal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

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
	viper.Set(key.SearchPageSize, 10)
	viper.Set(key.SearchLimit, 20)
}

func testSession() *Session {
	return &Session{
		accessToken: "test-token",
		countryCode: "US",
		expiresAt:   time.Now().Add(time.Hour),
	}
}

func testClient(serverURL string) *Client {
	session := testSession()
	return &Client{
		session:      session,
		fetcher:      network.NewFetcher(session),
		apiBase:      serverURL + "/v1",
		playbackBase: serverURL + "/v1",
		openAPIBase:  serverURL + "/v2",
	}
}

func btManifestFor(streamURL string) string {
	manifest, _ := json.Marshal(map[string]any{
		"codecs": "flac",
		"urls":   []string{streamURL},
	})
	return base64.StdEncoding.EncodeToString(manifest)
}

func TestSearchRequests(t *testing.T) {
	Convey("Search request construction", t, func() {
		client := testClient("http://unused")
		urls := client.SearchRequests("dark side of the moon")

		So(urls, ShouldHaveLength, 2)
		So(urls[0], ShouldContainSubstring, "offset=0")
		So(urls[1], ShouldContainSubstring, "offset=10")
		So(urls[0], ShouldContainSubstring, "query=dark+side+of+the+moon")
		So(urls[0], ShouldContainSubstring, "countryCode=US")

		Convey("Last page shrinks to the remaining result budget", func() {
			viper.Set(key.SearchLimit, 15)
			defer viper.Set(key.SearchLimit, 20)

			urls := client.SearchRequests("echoes")
			So(urls, ShouldHaveLength, 2)
			So(urls[0], ShouldContainSubstring, "limit=10")
			So(urls[1], ShouldContainSubstring, "limit=5")
		})
	})
}

func TestSearchPage(t *testing.T) {
	Convey("Search page normalization", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"tracks": {
					"items": [
						{
							"id": 77646169,
							"title": "Breathe",
							"duration": 163,
							"trackNumber": 2,
							"volumeNumber": 1,
							"isrc": "GBN9Y1100088",
							"artists": [{"name": "Pink Floyd"}],
							"album": {"title": "The Dark Side of the Moon", "releaseDate": "1973-03-01"}
						},
						{"title": "missing id, skipped"}
					]
				}
			}`)
		}))
		defer server.Close()

		client := testClient(server.URL)
		songs, err := client.SearchPage(context.Background(), server.URL+"/v1/search?query=breathe")

		So(err, ShouldBeNil)
		So(songs, ShouldHaveLength, 1)

		song := songs[0]
		So(song.Identifier, ShouldEqual, "77646169")
		So(song.Title, ShouldEqual, "Breathe")
		So(song.ArtistCandidates, ShouldResemble, []string{"Pink Floyd"})
		So(song.Album, ShouldEqual, "The Dark Side of the Moon")
		So(song.TrackNumber.MustGet(), ShouldEqual, 2)
		So(song.DiscNumber.MustGet(), ShouldEqual, 1)
		So(song.Duration, ShouldEqual, "2:43")
		So(song.Date, ShouldEqual, "1973-03-01")
		So(song.ISRC, ShouldEqual, "GBN9Y1100088")
	})
}

func TestStreamOf(t *testing.T) {
	Convey("Quality negotiation", t, func() {
		var playbackCalls int32

		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/v1/tracks/42/playbackinfo", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&playbackCalls, 1)
			quality := r.URL.Query().Get("audioquality")

			streamURL := server.URL + "/alive.flac"
			if quality == "HI_RES_LOSSLESS" {
				streamURL = server.URL + "/dead.flac"
			}

			fmt.Fprintf(w, `{
				"trackId": 42,
				"audioQuality": %q,
				"manifestMimeType": "application/vnd.tidal.bt",
				"manifest": %q
			}`, quality, btManifestFor(streamURL))
		})
		mux.HandleFunc("/dead.flac", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/alive.flac", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "9000")
		})

		client := testClient(server.URL)
		song := &source.SongInfo{Identifier: "42", Title: "Answer"}

		Convey("Falls past an unreachable tier with exactly two playback-info requests", func() {
			desc, err := client.StreamOf(context.Background(), song)

			So(err, ShouldBeNil)
			So(desc.Quality, ShouldEqual, "LOSSLESS")
			So(desc.Primary(), ShouldEqual, server.URL+"/alive.flac")
			So(atomic.LoadInt32(&playbackCalls), ShouldEqual, 2)
			So(song.FileSize, ShouldEqual, 9000)
		})
	})

	Convey("All tiers exhausted", t, func() {
		var playbackCalls int32

		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/v1/tracks/42/playbackinfo", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&playbackCalls, 1)
			fmt.Fprintf(w, `{
				"audioQuality": "LOW",
				"manifestMimeType": "application/vnd.tidal.bt",
				"manifest": %q
			}`, btManifestFor(server.URL+"/dead.flac"))
		})
		mux.HandleFunc("/dead.flac", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		client := testClient(server.URL)
		_, err := client.StreamOf(context.Background(), &source.SongInfo{Identifier: "42"})

		So(err, ShouldEqual, ErrNoPlayableStream)
		So(atomic.LoadInt32(&playbackCalls), ShouldEqual, int32(len(qualityLadder)))
	})
}

func TestResolveAlbum(t *testing.T) {
	Convey("Album resolution pages through the track listing", t, func() {
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/v1/albums/5513780/tracks", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"totalNumberOfItems": 2,
				"items": [
					{"id": 1, "title": "Speak to Me", "trackNumber": 1, "album": {"title": "TDSOTM"}},
					{"id": 2, "title": "Breathe", "trackNumber": 2, "album": {"title": "TDSOTM"}}
				]
			}`)
		})

		client := testClient(server.URL)
		songs, err := client.Resolve(context.Background(), "https://tidal.com/browse/album/5513780")

		So(err, ShouldBeNil)
		So(songs, ShouldHaveLength, 2)
		So(songs[0].Title, ShouldEqual, "Speak to Me")
		So(songs[1].Identifier, ShouldEqual, "2")
	})

	Convey("Playlist items unwrap the track object", t, func() {
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/v1/playlists/abc-def/tracks", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"totalNumberOfItems": 1,
				"items": [{"track": {"id": 9, "title": "Wrapped", "album": {"title": "X"}}}]
			}`)
		})

		client := testClient(server.URL)
		songs, err := client.Resolve(context.Background(), "https://listen.tidal.com/playlist/abc-def")

		So(err, ShouldBeNil)
		So(songs, ShouldHaveLength, 1)
		So(songs[0].Title, ShouldEqual, "Wrapped")
	})
}

func TestParseResource(t *testing.T) {
	Convey("Resource URL parsing", t, func() {
		cases := []struct {
			url  string
			kind string
			id   string
		}{
			{"https://tidal.com/browse/track/77646169", "track", "77646169"},
			{"https://listen.tidal.com/album/5513780", "album", "5513780"},
			{"https://tidal.com/playlist/7ab5d2b6-93fb-4181-a008-a1d18e2cebfa", "playlist", "7ab5d2b6-93fb-4181-a008-a1d18e2cebfa"},
			{"https://tidal.com/browse/Album/99/extra", "album", "99"},
		}
		for _, c := range cases {
			kind, id, err := parseResource(c.url)
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, c.kind)
			So(id, ShouldEqual, c.id)
		}

		Convey("Rejects URLs without a resource path", func() {
			for _, bad := range []string{"https://tidal.com/", "https://tidal.com/browse/track", "https://tidal.com/artist/42"} {
				_, _, err := parseResource(bad)
				So(err, ShouldNotBeNil)
			}
		})
	})
}
