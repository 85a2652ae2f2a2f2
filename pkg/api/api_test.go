package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatmux/pkg/ingest"
	"chatmux/pkg/models"
	"chatmux/pkg/registry"
	"chatmux/pkg/store"
	"chatmux/pkg/subscription"
	"chatmux/pkg/transport"
)

// fakeTransport records relay calls and returns a fixed activity id.
type fakeTransport struct {
	sent    []string
	sendErr error
}

func (f *fakeTransport) Send(_ context.Context, conversationID string, content transport.Content) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	if content.Text == "" && len(content.Attachments) == 0 {
		return "", transport.ErrEmptyContent
	}
	f.sent = append(f.sent, conversationID)
	return "act-42", nil
}

func (f *fakeTransport) Update(_ context.Context, conversationID, activityID string, content transport.Content) error {
	if content.Text == "" && len(content.Attachments) == 0 {
		return transport.ErrEmptyContent
	}
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, conversationID, activityID string) error {
	return nil
}

type apiFixture struct {
	api       *API
	index     *subscription.Index
	reg       *registry.StoreRegistry
	queue     *ingest.Queue
	transport *fakeTransport
	srv       *httptest.Server
}

func newAPIFixture(t *testing.T, queueCap int) *apiFixture {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	ix := subscription.NewIndex(kv)
	reg := registry.NewStoreRegistry(kv)
	q := ingest.NewQueue(queueCap)
	ft := &fakeTransport{}
	a := &API{Queue: q, Index: ix, Registry: reg, Transport: ft, DispatchWait: 2 * time.Second}
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return &apiFixture{api: a, index: ix, reg: reg, queue: q, transport: ft, srv: srv}
}

// runWorker drains the queue with the given handler for the test's
// lifetime.
func (f *apiFixture) runWorker(t *testing.T, handler func(*ingest.Job) error) {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go f.queue.RunWorker(stop, handler)
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestPostActivityAccepted(t *testing.T) {
	f := newAPIFixture(t, 8)
	f.runWorker(t, func(j *ingest.Job) error { return nil })

	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/activities",
		map[string]string{"type": "message", "id": "5", "text": "hi"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	require.Equal(t, "accepted", body["status"])
}

func TestPostActivityDispatchErrorSurfaces(t *testing.T) {
	f := newAPIFixture(t, 8)
	f.runWorker(t, func(j *ingest.Job) error { return errors.New("store write failed") })

	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/activities", map[string]string{"type": "message"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPostActivityQueueFull(t *testing.T) {
	f := newAPIFixture(t, 1)
	// no worker: the single slot stays occupied
	require.NoError(t, f.queue.TryEnqueue([]byte(`{"type":"message"}`), 0, nil))

	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/activities", map[string]string{"type": "message"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPostActivityRejectsBadJSON(t *testing.T) {
	f := newAPIFixture(t, 8)
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/activities", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostActivityRejectsOversizedBody(t *testing.T) {
	f := newAPIFixture(t, 8)
	big := bytes.Repeat([]byte("x"), maxActivityBody+2)
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/activities", bytes.NewReader(big))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newAPIFixture(t, 8)

	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/subscriptions", subscriptionRequest{
		Namespace: "events", Anchor: "3", Subscriber: "blockX", EventID: "evtP"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, f.srv.URL+"/v1/subscriptions?namespace=events&anchor=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Namespace   string   `json:"namespace"`
		Anchor      string   `json:"anchor"`
		Subscribers []string `json:"subscribers"`
		ParentEvent string   `json:"parent_event"`
	}
	decodeBody(t, resp, &listed)
	require.Equal(t, []string{"blockX"}, listed.Subscribers)
	require.Equal(t, "evtP", listed.ParentEvent)

	resp = doJSON(t, http.MethodDelete, f.srv.URL+"/v1/subscriptions?namespace=events&anchor=3&subscriber=blockX", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	subs, err := f.index.Lookup(subscription.NamespaceEvents, "3")
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestSubscriptionValidation(t *testing.T) {
	f := newAPIFixture(t, 8)
	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/subscriptions", subscriptionRequest{
		Namespace: "bogus", Anchor: "3", Subscriber: "s1"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, f.srv.URL+"/v1/subscriptions", subscriptionRequest{
		Namespace: "events", Subscriber: "s1"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubscriberLifecycle(t *testing.T) {
	f := newAPIFixture(t, 8)

	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/subscribers",
		models.Subscriber{Capability: models.CapabilityMention, Channel: "19:general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Subscriber
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID, "server assigns an id when none is given")

	resp = doJSON(t, http.MethodGet, f.srv.URL+"/v1/subscribers/mention/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Subscriber
	decodeBody(t, resp, &got)
	require.Equal(t, "19:general", got.Channel)

	resp = doJSON(t, http.MethodGet, f.srv.URL+"/v1/subscribers?capability=mention", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Subscribers []models.Subscriber `json:"subscribers"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Subscribers, 1)

	resp = doJSON(t, http.MethodDelete, f.srv.URL+"/v1/subscribers/mention/"+created.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, f.srv.URL+"/v1/subscribers/mention/"+created.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubscriberCapabilityValidated(t *testing.T) {
	f := newAPIFixture(t, 8)
	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/subscribers",
		models.Subscriber{ID: "s1", Capability: "superuser"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessageRecordsSubscriptions(t *testing.T) {
	f := newAPIFixture(t, 8)

	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/messages", sendMessageRequest{
		ConversationID: "19:room", Text: "status update", Subscriber: "blockX", EventID: "evtP"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	require.Equal(t, "act-42", body["id"])
	require.Equal(t, []string{"19:room"}, f.transport.sent)

	// reactions and actions on the new message route back to the sender
	subs, err := f.index.Lookup(subscription.NamespaceEvents, "act-42")
	require.NoError(t, err)
	require.Equal(t, []string{"blockX"}, subs)
	parent, ok, err := f.index.ParentEvent("act-42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "evtP", parent)

	// replies in the conversation route back too
	subs, err = f.index.Lookup(subscription.NamespaceReplies, "19:room")
	require.NoError(t, err)
	require.Equal(t, []string{"blockX"}, subs)
}

func TestSendMessageDefaultsParentToActivityID(t *testing.T) {
	f := newAPIFixture(t, 8)
	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/messages", sendMessageRequest{
		ConversationID: "19:room", Text: "hello", Subscriber: "blockX"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	parent, ok, err := f.index.ParentEvent("act-42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "act-42", parent)
}

func TestSendMessageWithoutSubscriberRegistersNothing(t *testing.T) {
	f := newAPIFixture(t, 8)
	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/messages", sendMessageRequest{
		ConversationID: "19:room", Text: "fire and forget"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	subs, err := f.index.Lookup(subscription.NamespaceEvents, "act-42")
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestSendMessageEmptyContent(t *testing.T) {
	f := newAPIFixture(t, 8)
	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/messages", sendMessageRequest{
		ConversationID: "19:room"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessagePlatformFailure(t *testing.T) {
	f := newAPIFixture(t, 8)
	f.transport.sendErr = errors.New("platform unreachable")
	resp := doJSON(t, http.MethodPost, f.srv.URL+"/v1/messages", sendMessageRequest{
		ConversationID: "19:room", Text: "hello"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestUpdateAndDeleteMessage(t *testing.T) {
	f := newAPIFixture(t, 8)

	resp := doJSON(t, http.MethodPut, f.srv.URL+"/v1/messages/act-42", updateMessageRequest{
		ConversationID: "19:room", Text: "edited"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, f.srv.URL+"/v1/messages/act-42?conversation=19:room", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, f.srv.URL+"/v1/messages/act-42", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
