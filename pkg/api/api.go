// Package api exposes the HTTP surface: the inbound webhook, the
// subscription and subscriber admin endpoints and the outbound message
// relay.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatmux/pkg/ingest"
	"chatmux/pkg/registry"
	"chatmux/pkg/subscription"
	"chatmux/pkg/transport"
)

// API holds the handler dependencies.
type API struct {
	Queue     *ingest.Queue
	Index     *subscription.Index
	Registry  *registry.StoreRegistry
	Transport transport.Transport

	// DispatchWait bounds how long the webhook handler waits for the
	// dispatch outcome of an accepted activity. Zero means 30s.
	DispatchWait time.Duration
}

// Handler returns the router for all /v1 endpoints.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	a.registerActivities(v1)
	a.registerSubscriptions(v1)
	a.registerSubscribers(v1)
	a.registerMessages(v1)
	return r
}

func (a *API) dispatchWait() time.Duration {
	if a.DispatchWait > 0 {
		return a.DispatchWait
	}
	return 30 * time.Second
}
