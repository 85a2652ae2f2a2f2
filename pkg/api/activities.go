package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatmux/pkg/ingest"
	"chatmux/pkg/logger"
	"chatmux/pkg/telemetry"
	"chatmux/pkg/utils"
)

// maxActivityBody bounds a single webhook delivery.
const maxActivityBody = 1 << 20 // 1 MiB

// registerActivities registers the inbound webhook endpoint.
func (a *API) registerActivities(r *mux.Router) {
	r.HandleFunc("/activities", a.postActivity).Methods(http.MethodPost)
}

// postActivity accepts one platform activity, queues it and waits for
// the dispatch outcome so store failures surface to the caller.
func (a *API) postActivity(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActivityBody+1))
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if len(body) > maxActivityBody {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "activity too large")
		return
	}
	// Only the envelope must be JSON here; field-level problems are the
	// classifier's business and end as Ignored.
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result := make(chan error, 1)
	if err := a.Queue.TryEnqueue(body, time.Now().UTC().UnixNano(), result); err != nil {
		if errors.Is(err, ingest.ErrQueueFull) {
			telemetry.ActivitiesDropped.Inc()
			logger.Warn("activity_rejected_queue_full", "queue_len", a.Queue.Len())
			utils.JSONError(w, http.StatusServiceUnavailable, "queue full")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	telemetry.ActivitiesReceived.WithLabelValues(envelope.Type).Inc()

	// Wait for the dispatch outcome: a store failure is fatal for this
	// single activity and must become an error response upstream.
	select {
	case err := <-result:
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case <-r.Context().Done():
		// caller went away; the activity still dispatches
		w.WriteHeader(http.StatusAccepted)
	case <-time.After(a.dispatchWait()):
		_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}
