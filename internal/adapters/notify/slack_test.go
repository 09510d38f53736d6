package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/affirmbot/internal/adapters/notify"
	"github.com/okian/affirmbot/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSlack(t *testing.T) {
	e := model.Event{ActorDID: "did:plc:alice", Collection: model.PostCollection, RecordKey: "3k1", CID: "bafy1"}

	Convey("Given a webhook endpoint", t, func() {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()
		s := notify.NewSlack(srv.URL, srv.Client())

		Convey("When an event is alerted", func() {
			err := s.Alert(context.Background(), e, errors.New("connection reset"))

			Convey("Then the message names the post and the cause", func() {
				So(err, ShouldBeNil)
				So(got["text"], ShouldContainSubstring, "did:plc:alice/post/3k1")
				att := got["attachments"].([]any)[0].(map[string]any)
				fields := att["fields"].([]any)
				So(fields[0].(map[string]any)["value"], ShouldEqual, "bafy1")
				So(fields[1].(map[string]any)["value"], ShouldEqual, "connection reset")
			})
		})
	})

	Convey("Given a failing webhook", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		So(notify.NewSlack(srv.URL, srv.Client()).Alert(context.Background(), e, nil), ShouldNotBeNil)
	})

	Convey("Given no webhook", t, func() {
		s := notify.NewSlack("", nil)
		So(s.Enabled(), ShouldBeFalse)
		So(s.Alert(context.Background(), e, errors.New("x")), ShouldBeNil)
	})
}
