package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/affirmbot/internal/adapters/http/api"
	service "github.com/okian/affirmbot/internal/app"
	"github.com/okian/affirmbot/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	outcome   service.Outcome
	received  []model.Event
	favorite  model.FavoritePost
	hasFav    bool
	favErr    error
	stats     service.Stats
	favLookup string
}

func (m *mockDependencies) Intake(_ context.Context, e model.Event) service.Outcome {
	m.received = append(m.received, e)
	return m.outcome
}

func (m *mockDependencies) FavoritePost(_ context.Context, did string) (model.FavoritePost, bool, error) {
	m.favLookup = did
	return m.favorite, m.hasFav, m.favErr
}

func (m *mockDependencies) GetStats(context.Context) service.Stats {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return mux
}

func postEvent(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

const validEvent = `{"actor_did":"did:plc:alice","rkey":"3kxyz","cid":"bafy1","text":"ran 5k today","langs":["en"]}`

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{outcome: service.OutcomeQueued}
		mux := newMux(deps)

		Convey("Then the health endpoint serves metrics", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint is reachable", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown paths are not found", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEventsHandler(t *testing.T) {
	Convey("Given an events endpoint", t, func() {
		deps := &mockDependencies{outcome: service.OutcomeQueued}
		mux := newMux(deps)

		Convey("When a valid post is submitted", func() {
			w := postEvent(mux, validEvent)

			Convey("Then it is accepted with the post collection filled in", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var ack map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack["status"], ShouldEqual, "accepted")
				So(ack["duplicate"], ShouldEqual, false)
				So(deps.received, ShouldHaveLength, 1)
				So(deps.received[0].Collection, ShouldEqual, model.PostCollection)
				So(deps.received[0].Langs, ShouldResemble, []string{"en"})
			})
		})

		Convey("When the service has seen the post already", func() {
			deps.outcome = service.OutcomeDuplicate
			w := postEvent(mux, validEvent)

			Convey("Then it reports a duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the body is not JSON", func() {
			w := postEvent(mux, "{not json")

			Convey("Then it is a bad request and never reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.received, ShouldBeEmpty)
			})
		})

		Convey("When a required field is missing", func() {
			w := postEvent(mux, `{"actor_did":"did:plc:alice"}`)

			Convey("Then the validation message is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "missing rkey")
				So(deps.received, ShouldBeEmpty)
			})
		})

		Convey("When the collection is not a post", func() {
			w := postEvent(mux, `{"actor_did":"did:plc:alice","rkey":"1","collection":"app.bsky.feed.like"}`)

			Convey("Then it is rejected as a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the author does not follow the bot", func() {
			deps.outcome = service.OutcomeNotFollower
			w := postEvent(mux, validEvent)

			Convey("Then it is unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(w.Body.String(), ShouldContainSubstring, "not_follower")
			})
		})

		Convey("When the queue is full", func() {
			deps.outcome = service.OutcomeQueueFull
			w := postEvent(mux, validEvent)

			Convey("Then it signals backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})

		Convey("When the service is stopped", func() {
			deps.outcome = service.OutcomeStopped
			w := postEvent(mux, validEvent)

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the method is not POST", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", http.NoBody))

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestFavoritesHandler(t *testing.T) {
	Convey("Given a favorites endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		Convey("When the actor has a favorite post", func() {
			deps.hasFav = true
			deps.favorite = model.FavoritePost{
				DID:       "did:plc:alice",
				Post:      "ran 5k today",
				Score:     80,
				UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			}
			w := get("/favorites/did:plc:alice")

			Convey("Then it is returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.favLookup, ShouldEqual, "did:plc:alice")
				var fav model.FavoritePost
				So(json.Unmarshal(w.Body.Bytes(), &fav), ShouldBeNil)
				So(fav.Score, ShouldEqual, 80)
				So(fav.Post, ShouldEqual, "ran 5k today")
			})
		})

		Convey("When the actor has none", func() {
			w := get("/favorites/did:plc:bob")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the path is not a DID", func() {
			w := get("/favorites/alice")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.favLookup, ShouldBeEmpty)
			})
		})

		Convey("When the store fails", func() {
			deps.favErr = errors.New("database is locked")
			w := get("/favorites/did:plc:alice")

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "database is locked")
			})
		})

		Convey("When the method is not GET", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/favorites/did:plc:alice", http.NoBody))

			Convey("Then it is not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestStatsHandler(t *testing.T) {
	Convey("Given a stats handler", t, func() {
		deps := &mockDependencies{stats: service.Stats{
			Started:     true,
			Workers:     4,
			QueueLength: 2,
			BudgetUsed:  3,
			BudgetCap:   100,
			Followers:   12,
			Modes:       []string{"fortune", "affirmation"},
		}}
		h := api.NewStatsHandler(deps)

		Convey("When handling a GET", func() {
			w := httptest.NewRecorder()
			h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))

			Convey("Then the snapshot is encoded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				var got service.Stats
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Workers, ShouldEqual, 4)
				So(got.BudgetCap, ShouldEqual, 100)
				So(got.Modes, ShouldResemble, []string{"fortune", "affirmation"})
			})
		})

		Convey("When handling a POST", func() {
			w := httptest.NewRecorder()
			h.HandleStats(w, httptest.NewRequest(http.MethodPost, "/stats", http.NoBody))

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler that fails", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, "test")

		Convey("Then the status code passes through", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})
	})
}
