package filesystem

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBackendSwitch(t *testing.T) {
	Convey("Filesystem backend", t, func() {
		Convey("MemMapFs should be volatile", func() {
			SetMemMapFs()
			So(API().WriteFile("/probe.txt", []byte("x"), 0644), ShouldBeNil)

			exists, err := API().Exists("/probe.txt")
			So(err, ShouldBeNil)
			So(exists, ShouldBeTrue)

			SetMemMapFs()
			exists, err = API().Exists("/probe.txt")
			So(err, ShouldBeNil)
			So(exists, ShouldBeFalse)
		})
	})
}
