package config

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

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		Convey("Should initialize without error", func() {
			err := Setup()
			So(err, ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			_ = Setup()
			for name := range Default {
				So(viper.Get(name), ShouldNotBeNil)
			}
		})

		Convey("Quality-sensitive defaults should be sane", func() {
			_ = Setup()
			So(viper.GetInt(key.DownloadConcurrency), ShouldBeGreaterThan, 0)
			So(viper.GetInt(key.NetworkMaxRetries), ShouldBeGreaterThan, 0)
			So(viper.GetString(key.DownloadFormat), ShouldStartWith, ".")
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			result := EnvKeyReplacer.Replace("download.segment.concurrency")
			So(result, ShouldEqual, "download_segment_concurrency")
		})
	})
}
