package source

import (
	"testing"

	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStreamDescriptor(t *testing.T) {
	Convey("StreamDescriptor", t, func() {
		Convey("Resolved", func() {
			var nilDesc *StreamDescriptor
			So(nilDesc.Resolved(), ShouldBeFalse)
			So((&StreamDescriptor{}).Resolved(), ShouldBeFalse)
			So((&StreamDescriptor{URLs: []string{"http://cdn/a"}}).Resolved(), ShouldBeTrue)
		})

		Convey("Primary", func() {
			d := &StreamDescriptor{URLs: []string{"http://cdn/a", "http://cdn/b"}}
			So(d.Primary(), ShouldEqual, "http://cdn/a")
			So((&StreamDescriptor{}).Primary(), ShouldEqual, "")
		})

		Convey("Encrypted", func() {
			So((&StreamDescriptor{KeyToken: "abc"}).Encrypted(), ShouldBeTrue)
			So((&StreamDescriptor{}).Encrypted(), ShouldBeFalse)
		})
	})
}

func TestSongInfo(t *testing.T) {
	Convey("SongInfo", t, func() {
		song := &SongInfo{
			Identifier:  "77646169",
			Title:       "Breathe",
			Album:       "The Dark Side of the Moon",
			TrackNumber: mo.Some(2),
		}

		Convey("Work directory is assigned exactly once", func() {
			So(song.WorkDir(), ShouldEqual, "")
			song.AssignWorkDir("/downloads/Pink Floyd/The Dark Side of the Moon")
			song.AssignWorkDir("/somewhere/else")
			So(song.WorkDir(), ShouldEqual, "/downloads/Pink Floyd/The Dark Side of the Moon")
		})

		Convey("File base with track number prefix", func() {
			So(song.FileBase(true), ShouldEqual, "02 - Breathe")
			So(song.FileBase(false), ShouldEqual, "Breathe")
		})

		Convey("File base without track number falls back to plain title", func() {
			song.TrackNumber = mo.None[int]()
			So(song.FileBase(true), ShouldEqual, "Breathe")
		})

		Convey("File base sanitizes the title", func() {
			song.Title = "What / Is?"
			So(song.FileBase(false), ShouldNotContainSubstring, "/")
		})
	})
}

func TestRawProbing(t *testing.T) {
	Convey("Raw payload probing", t, func() {
		raw := []byte(`{
			"title": "Time",
			"artists": [{"name": "Pink Floyd"}, {"name": "Orchestra"}],
			"album": {"title": "The Dark Side of the Moon"},
			"trackNumber": "4/10",
			"volumeNumber": 1,
			"duration": 413
		}`)

		Convey("ProbeString takes the first matching path", func() {
			So(ProbeString(raw, "artist.name", "artists.0.name"), ShouldEqual, "Pink Floyd")
			So(ProbeString(raw, "nope", "missing"), ShouldEqual, "")
		})

		Convey("ProbeStrings collects without duplicates", func() {
			names := ProbeStrings(raw, "artists.#.name", "artists.0.name")
			So(names, ShouldResemble, []string{"Pink Floyd", "Orchestra"})
		})

		Convey("ProbeInt normalizes n/total notation", func() {
			So(ProbeInt(raw, "trackNumber").MustGet(), ShouldEqual, 4)
			So(ProbeInt(raw, "volumeNumber").MustGet(), ShouldEqual, 1)
			So(ProbeInt(raw, "missing").IsAbsent(), ShouldBeTrue)
		})

		Convey("FillFromRaw populates missing fields only", func() {
			song := &SongInfo{RawPayload: raw, Title: "Kept Title"}
			FillFromRaw(song)
			So(song.Title, ShouldEqual, "Kept Title")
			So(song.ArtistCandidates, ShouldResemble, []string{"Pink Floyd", "Orchestra"})
			So(song.Album, ShouldEqual, "The Dark Side of the Moon")
			So(song.TrackNumber.MustGet(), ShouldEqual, 4)
			So(song.DiscNumber.MustGet(), ShouldEqual, 1)
			So(song.DurationSeconds, ShouldEqual, 413)
		})
	})
}

func TestNormalizeTrackNumber(t *testing.T) {
	Convey("NormalizeTrackNumber", t, func() {
		cases := map[string]int{
			"7":       7,
			"7/12":    7,
			"07":      7,
			" 3 ":     3,
			"3-1":     3,
			"2.05":    2,
			"4 of 12": 4,
		}
		for in, want := range cases {
			n, ok := NormalizeTrackNumber(in)
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, want)
		}

		for _, in := range []string{"", "0", "-2", "x", "/5"} {
			_, ok := NormalizeTrackNumber(in)
			So(ok, ShouldBeFalse)
		}
	})
}

func TestStripFeaturedArtists(t *testing.T) {
	Convey("StripFeaturedArtists", t, func() {
		Convey("Bracketed annotations are removed", func() {
			So(StripFeaturedArtists("Song (feat. Someone)"), ShouldEqual, "Song")
			So(StripFeaturedArtists("Song [ft. A & B]"), ShouldEqual, "Song")
			So(StripFeaturedArtists("Song (with Guest)"), ShouldEqual, "Song")
		})

		Convey("Bare feature tokens cut the name", func() {
			So(StripFeaturedArtists("Daft Punk feat. Pharrell Williams"), ShouldEqual, "Daft Punk")
			So(StripFeaturedArtists("Artist ft. Guest"), ShouldEqual, "Artist")
			So(StripFeaturedArtists("Artist FT Guest"), ShouldEqual, "Artist")
			So(StripFeaturedArtists("Somebody with Someone Else"), ShouldEqual, "Somebody")
			So(StripFeaturedArtists("A x B"), ShouldEqual, "A")
		})

		Convey("Comma-separated co-artists keep the first", func() {
			So(StripFeaturedArtists("Main Act, Second Act"), ShouldEqual, "Main Act")
		})

		Convey("Leftover joiners are trimmed", func() {
			So(StripFeaturedArtists("Artist & feat. Guest"), ShouldEqual, "Artist")
		})

		Convey("Plain names pass through", func() {
			So(StripFeaturedArtists("Plain Song"), ShouldEqual, "Plain Song")
			So(StripFeaturedArtists("Features of Life"), ShouldEqual, "Features of Life")
		})
	})
}

func TestArtistOf(t *testing.T) {
	Convey("ArtistOf", t, func() {
		Convey("Strips featured artists from the winning candidate", func() {
			song := &SongInfo{ArtistCandidates: []string{"Daft Punk feat. Pharrell Williams"}}
			So(ArtistOf(song), ShouldEqual, "Daft Punk")
		})

		Convey("Skips candidates that strip to nothing", func() {
			song := &SongInfo{ArtistCandidates: []string{"- & -", "Pink Floyd"}}
			So(ArtistOf(song), ShouldEqual, "Pink Floyd")
		})

		Convey("Falls back to the raw payload, stripped", func() {
			song := &SongInfo{RawPayload: []byte(`{"artist": {"name": "Somebody with Someone Else"}}`)}
			So(ArtistOf(song), ShouldEqual, "Somebody")
		})

		Convey("Defaults when nothing resolves", func() {
			So(ArtistOf(&SongInfo{}), ShouldEqual, "Unknown Artist")
		})
	})
}
