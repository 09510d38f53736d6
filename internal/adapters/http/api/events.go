package api

import (
	"encoding/json"
	"net/http"

	service "github.com/okian/affirmbot/internal/app"
	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/metrics"
)

// EventsHandler accepts posts injected by operators, outside the firehose.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var e model.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if e.Collection == "" {
		e.Collection = model.PostCollection
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	metrics.RecordEventReceived("http")

	switch outcome := h.deps.Intake(r.Context(), e); outcome {
	case service.OutcomeQueued:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	case service.OutcomeDuplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
	case service.OutcomeInvalid:
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
	case service.OutcomeSelf, service.OutcomeNotFollower:
		writeError(w, http.StatusUnprocessableEntity, string(outcome), NewKind(op, ErrRejected))
	case service.OutcomeQueueFull:
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	default:
		writeError(w, http.StatusServiceUnavailable, string(outcome), NewKind(op, ErrUnavailable))
	}
}
