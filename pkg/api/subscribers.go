package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chatmux/pkg/models"
	"chatmux/pkg/store"
	"chatmux/pkg/utils"
)

// registerSubscribers registers the subscriber-handle admin endpoints.
func (a *API) registerSubscribers(r *mux.Router) {
	r.HandleFunc("/subscribers", a.createSubscriber).Methods(http.MethodPost)
	r.HandleFunc("/subscribers", a.listSubscribers).Methods(http.MethodGet)
	r.HandleFunc("/subscribers/{capability}/{id}", a.getSubscriber).Methods(http.MethodGet)
	r.HandleFunc("/subscribers/{capability}/{id}", a.deleteSubscriber).Methods(http.MethodDelete)
}

func parseCapability(s string) (models.Capability, bool) {
	switch models.Capability(s) {
	case models.CapabilitySender:
		return models.CapabilitySender, true
	case models.CapabilityThread:
		return models.CapabilityThread, true
	case models.CapabilityMention:
		return models.CapabilityMention, true
	default:
		return "", false
	}
}

func (a *API) createSubscriber(w http.ResponseWriter, r *http.Request) {
	var sub models.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if _, ok := parseCapability(string(sub.Capability)); !ok {
		utils.JSONError(w, http.StatusBadRequest, "capability must be sender, thread or mention")
		return
	}
	if sub.ID == "" {
		sub.ID = utils.GenID()
	}
	if err := a.Registry.Put(sub); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, sub)
}

func (a *API) listSubscribers(w http.ResponseWriter, r *http.Request) {
	cap, ok := parseCapability(r.URL.Query().Get("capability"))
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "capability must be sender, thread or mention")
		return
	}
	subs, err := a.Registry.ListByCapability(cap)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Capability  string              `json:"capability"`
		Subscribers []models.Subscriber `json:"subscribers"`
	}{Capability: string(cap), Subscribers: subs})
}

func (a *API) getSubscriber(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cap, ok := parseCapability(vars["capability"])
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "capability must be sender, thread or mention")
		return
	}
	sub, err := a.Registry.Get(cap, vars["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "subscriber not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, sub)
}

func (a *API) deleteSubscriber(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cap, ok := parseCapability(vars["capability"])
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "capability must be sender, thread or mention")
		return
	}
	if err := a.Registry.Remove(cap, vars["id"]); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
