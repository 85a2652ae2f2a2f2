package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatmux/pkg/subscription"
	"chatmux/pkg/utils"
)

// registerSubscriptions registers the explicit subscription endpoints.
func (a *API) registerSubscriptions(r *mux.Router) {
	r.HandleFunc("/subscriptions", a.createSubscription).Methods(http.MethodPost)
	r.HandleFunc("/subscriptions", a.listSubscriptions).Methods(http.MethodGet)
	r.HandleFunc("/subscriptions", a.deleteSubscription).Methods(http.MethodDelete)
}

type subscriptionRequest struct {
	Namespace  string `json:"namespace"`
	Anchor     string `json:"anchor"`
	Subscriber string `json:"subscriber"`
	EventID    string `json:"event_id,omitempty"`
}

func parseNamespace(s string) (subscription.Namespace, bool) {
	switch subscription.Namespace(s) {
	case subscription.NamespaceEvents:
		return subscription.NamespaceEvents, true
	case subscription.NamespaceReplies:
		return subscription.NamespaceReplies, true
	default:
		return "", false
	}
}

func (a *API) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ns, ok := parseNamespace(req.Namespace)
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "namespace must be events or replies")
		return
	}
	if req.Anchor == "" || req.Subscriber == "" {
		utils.JSONError(w, http.StatusBadRequest, "anchor and subscriber are required")
		return
	}
	key := subscription.Key{Namespace: ns, Anchor: req.Anchor, Subscriber: req.Subscriber}
	if err := a.Index.Register(key, req.EventID); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, req)
}

func (a *API) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	ns, ok := parseNamespace(r.URL.Query().Get("namespace"))
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "namespace must be events or replies")
		return
	}
	anchor := r.URL.Query().Get("anchor")
	if anchor == "" {
		utils.JSONError(w, http.StatusBadRequest, "anchor is required")
		return
	}
	subs, err := a.Index.Lookup(ns, anchor)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	parent, _, err := a.Index.ParentEvent(anchor)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Namespace   string   `json:"namespace"`
		Anchor      string   `json:"anchor"`
		Subscribers []string `json:"subscribers"`
		ParentEvent string   `json:"parent_event,omitempty"`
	}{Namespace: string(ns), Anchor: anchor, Subscribers: subs, ParentEvent: parent})
}

func (a *API) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ns, ok := parseNamespace(q.Get("namespace"))
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "namespace must be events or replies")
		return
	}
	anchor := q.Get("anchor")
	sub := q.Get("subscriber")
	if anchor == "" || sub == "" {
		utils.JSONError(w, http.StatusBadRequest, "anchor and subscriber are required")
		return
	}
	if err := a.Index.Remove(subscription.Key{Namespace: ns, Anchor: anchor, Subscriber: sub}); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
