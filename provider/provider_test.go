package provider

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/songdl-cli/songdl/filesystem"
	"github.com/songdl-cli/songdl/key"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestProviders(t *testing.T) {
	Convey("Provider registry", t, func() {
		Convey("TIDAL is built in", func() {
			So(Names(), ShouldContain, "tidal")

			p, ok := Get("tidal")
			So(ok, ShouldBeTrue)
			So(p.Name, ShouldEqual, "TIDAL")
			So(p.String(), ShouldEqual, "TIDAL")
		})

		Convey("Lookup is case-insensitive and accepts the display name", func() {
			_, ok := Get("TIDAL")
			So(ok, ShouldBeTrue)
			_, ok = Get("Tidal")
			So(ok, ShouldBeTrue)
		})

		Convey("Unknown providers are not found", func() {
			_, ok := Get("napster")
			So(ok, ShouldBeFalse)
		})

		Convey("Defaults resolve from configuration", func() {
			viper.Set(key.DefaultSources, []string{"tidal"})
			providers, err := Defaults()
			So(err, ShouldBeNil)
			So(providers, ShouldHaveLength, 1)

			viper.Set(key.DefaultSources, []string{"bogus"})
			_, err = Defaults()
			So(err, ShouldNotBeNil)

			viper.Set(key.DefaultSources, []string{})
			providers, err = Defaults()
			So(err, ShouldBeNil)
			So(len(providers), ShouldBeGreaterThanOrEqualTo, 1)
		})
	})
}
