package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/songdl-cli/songdl/key"
	"github.com/spf13/viper"
)

func init() {
	viper.Set(key.NetworkMaxRetries, 3)
	viper.Set(key.NetworkTimeoutSeconds, 5)
}

type fakeHeaders struct {
	token    atomic.Value
	refreshN atomic.Int32
}

func newFakeHeaders(token string) *fakeHeaders {
	h := &fakeHeaders{}
	h.token.Store(token)
	return h
}

func (h *fakeHeaders) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + h.token.Load().(string)}
}

func (h *fakeHeaders) Refresh() error {
	h.refreshN.Add(1)
	h.token.Store("fresh")
	return nil
}

func TestFetcherRetries(t *testing.T) {
	Convey("Fetcher", t, func() {
		ctx := context.Background()

		Convey("Retries transient server errors within the budget", func() {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = io.WriteString(w, "payload")
			}))
			defer server.Close()

			resp, err := NewFetcher(nil).Get(ctx, server.URL, nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			So(string(body), ShouldEqual, "payload")
			So(calls.Load(), ShouldEqual, 3)
		})

		Convey("Returns the last failing response once the budget is exhausted", func() {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			resp, err := NewFetcher(nil).Get(ctx, server.URL, nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(calls.Load(), ShouldEqual, 3)
		})

		Convey("Refreshes auth once and retries with fresh headers", func() {
			headers := newFakeHeaders("stale")
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer fresh" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = io.WriteString(w, "ok")
			}))
			defer server.Close()

			resp, err := NewFetcher(headers).Get(ctx, server.URL, nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(headers.refreshN.Load(), ShouldEqual, 1)
		})

		Convey("Appends query parameters", func() {
			var gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query().Get("countryCode")
			}))
			defer server.Close()

			resp, err := NewFetcher(nil).Get(ctx, server.URL, &Options{Params: map[string]string{"countryCode": "US"}})
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(gotQuery, ShouldEqual, "US")
		})
	})
}

func TestProbe(t *testing.T) {
	Convey("Probe", t, func() {
		ctx := context.Background()

		Convey("Answers from a HEAD request", func() {
			var gotMethod string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				w.Header().Set("Content-Length", "4242")
			}))
			defer server.Close()

			ok, length, err := NewFetcher(nil).Probe(ctx, server.URL)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(length, ShouldEqual, 4242)
			So(gotMethod, ShouldEqual, http.MethodHead)
		})

		Convey("Falls back to a zero-range GET when HEAD is rejected", func() {
			var gotRange string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				gotRange = r.Header.Get("Range")
				w.Header().Set("Content-Range", "bytes 0-0/99000")
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write([]byte{0})
			}))
			defer server.Close()

			ok, length, err := NewFetcher(nil).Probe(ctx, server.URL)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(length, ShouldEqual, 99000)
			So(gotRange, ShouldEqual, "bytes=0-0")
		})

		Convey("Reports dead resources without error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			ok, _, err := NewFetcher(nil).Probe(ctx, server.URL)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})
	})
}
