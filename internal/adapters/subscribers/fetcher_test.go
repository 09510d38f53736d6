package subscribers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Given a spreadsheet export", t, func() {
		body := "did,name,plan\n" +
			"did:plc:alice, Alice ,monthly\n" +
			"\n" +
			"  did:plc:bob\n" +
			"not-a-did,x\n" +
			"did:plc:alice,dup\n"
		got, err := parse(strings.NewReader(body))

		So(err, ShouldBeNil)
		So(got, ShouldHaveLength, 2)
		So(got, ShouldContainKey, "did:plc:alice")
		So(got, ShouldContainKey, "did:plc:bob")
	})

	Convey("Given malformed quoting", t, func() {
		_, err := parse(strings.NewReader("did:plc:a,b\"c\n"))
		So(err, ShouldNotBeNil)
	})
}

func TestFetch(t *testing.T) {
	Convey("Given a published sheet", t, func() {
		status := http.StatusOK
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("did:plc:alice\n"))
		}))
		defer srv.Close()
		f := NewFetcher(srv.URL, srv.Client())

		Convey("Then subscribers are returned", func() {
			got, err := f.Fetch(context.Background())
			So(err, ShouldBeNil)
			So(got, ShouldContainKey, "did:plc:alice")
		})

		Convey("Then a non-200 status is an error", func() {
			status = http.StatusNotFound
			_, err := f.Fetch(context.Background())
			So(errors.Is(err, ErrStatus), ShouldBeTrue)
		})
	})

	Convey("Given no url", t, func() {
		got, err := NewFetcher("", nil).Fetch(context.Background())
		So(err, ShouldBeNil)
		So(got, ShouldBeEmpty)
	})
}
