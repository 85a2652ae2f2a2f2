package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chatmux/pkg/logger"
	"chatmux/pkg/models"
	"chatmux/pkg/subscription"
	"chatmux/pkg/transport"
	"chatmux/pkg/utils"
)

// registerMessages registers the outbound relay endpoints.
func (a *API) registerMessages(r *mux.Router) {
	r.HandleFunc("/messages", a.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", a.updateMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", a.deleteMessage).Methods(http.MethodDelete)
}

type sendMessageRequest struct {
	ConversationID string              `json:"conversation_id"`
	Text           string              `json:"text,omitempty"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
	// Subscriber, when set, registers the sending handle for events on
	// the created message and for replies in its conversation.
	Subscriber string `json:"subscriber,omitempty"`
	// EventID is the logical parent recorded for the new anchors. When
	// empty the platform activity id of the sent message is used.
	EventID string `json:"event_id,omitempty"`
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ConversationID == "" {
		utils.JSONError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	content := transport.Content{Text: req.Text, Attachments: req.Attachments}
	id, err := a.Transport.Send(r.Context(), req.ConversationID, content)
	if err != nil {
		if errors.Is(err, transport.ErrEmptyContent) {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Record the subscriptions this send creates: message-level events on
	// the new activity and thread replies in its conversation.
	if req.Subscriber != "" {
		eventID := req.EventID
		if eventID == "" {
			eventID = id
		}
		eventsKey := subscription.Key{Namespace: subscription.NamespaceEvents, Anchor: id, Subscriber: req.Subscriber}
		if err := a.Index.Register(eventsKey, eventID); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		repliesKey := subscription.Key{Namespace: subscription.NamespaceReplies, Anchor: req.ConversationID, Subscriber: req.Subscriber}
		if err := a.Index.Register(repliesKey, eventID); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.Info("send_subscriptions_recorded",
			"activity", id, "conversation", req.ConversationID, "subscriber", req.Subscriber)
	}

	_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{"id": id})
}

type updateMessageRequest struct {
	ConversationID string              `json:"conversation_id"`
	Text           string              `json:"text,omitempty"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
}

func (a *API) updateMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ConversationID == "" {
		utils.JSONError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	content := transport.Content{Text: req.Text, Attachments: req.Attachments}
	if err := a.Transport.Update(r.Context(), req.ConversationID, id, content); err != nil {
		if errors.Is(err, transport.ErrEmptyContent) {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"id": id})
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	conversationID := r.URL.Query().Get("conversation")
	if conversationID == "" {
		utils.JSONError(w, http.StatusBadRequest, "conversation query parameter is required")
		return
	}
	if err := a.Transport.Delete(r.Context(), conversationID, id); err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
