package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/state"
	"solus.com/command-relay/internal/stream"
)

// relay serves events as an SSE response and records the last request.
type relay struct {
	events  []stream.Event
	release chan struct{} // if set, the handler waits on it before writing

	mu   sync.Mutex
	last ChatRequest
}

func (rl *relay) lastRequest() ChatRequest {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.last
}

func (rl *relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	rl.mu.Lock()
	rl.last = req
	rl.mu.Unlock()
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	w.(http.Flusher).Flush()
	if rl.release != nil {
		<-rl.release
	}
	for _, ev := range rl.events {
		stream.WriteFrame(w, ev)
		w.(http.Flusher).Flush()
	}
}

func newSession(t *testing.T, h http.Handler) (*Session, *state.AppState) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	app := state.NewAppState()
	return NewSession(app, New(srv.URL+"/", nil)), app
}

func researchIntent() models.IntentClassification {
	return models.IntentClassification{
		PrimaryIntent:  models.IntentResearch,
		Confidence:     0.92,
		SuggestedModel: models.Perplexity,
		Reasoning:      "current events",
		Keywords:       []string{"release"},
	}
}

func TestSubmitAutoRouted(t *testing.T) {
	rl := &relay{events: []stream.Event{
		stream.IntentEvent(researchIntent()),
		stream.ContentEvent("Go 1.24 "),
		stream.ContentEvent("is out."),
		stream.CitationsEvent([]string{"https://go.dev/blog"}),
		stream.DoneEvent(),
	}}
	s, app := newSession(t, rl)

	var seen []stream.EventType
	sub, err := s.Submit(context.Background(), "  what shipped in Go this month?  ", func(ev stream.Event) {
		seen = append(seen, ev.Type)
	})
	require.NoError(t, err)

	assert.Equal(t, []stream.EventType{stream.EventIntent, stream.EventContent, stream.EventContent, stream.EventCitations, stream.EventDone}, seen)
	assert.Equal(t, "what shipped in Go this month?", rl.lastRequest().Message)
	assert.True(t, rl.lastRequest().AutoRoute)
	assert.Empty(t, rl.lastRequest().Model)
	assert.Equal(t, sub.ConversationID, rl.lastRequest().ConversationID)

	conv, ok := app.Conversation(sub.ConversationID)
	require.True(t, ok)
	assert.Equal(t, "what shipped in Go this month?", conv.Title)
	require.Len(t, conv.Messages, 2)

	user, asst := conv.Messages[0], conv.Messages[1]
	assert.Equal(t, sub.UserMessageID, user.ID)
	assert.Equal(t, state.RoleUser, user.Role)
	assert.Equal(t, sub.AssistantMessageID, asst.ID)
	assert.Equal(t, "Go 1.24 is out.", asst.Content)
	assert.Equal(t, models.Perplexity, asst.Model)
	assert.Equal(t, []string{"https://go.dev/blog"}, asst.Citations)
	require.NotNil(t, asst.Metadata)
	assert.Equal(t, models.IntentResearch, asst.Metadata.Intent.PrimaryIntent)
	assert.False(t, asst.IsStreaming)

	assert.Equal(t, state.StreamState{}, app.StreamState())
}

func TestSubmitUsesDefaultModelWithoutAutoRoute(t *testing.T) {
	rl := &relay{events: []stream.Event{stream.ContentEvent("hi"), stream.DoneEvent()}}
	s, app := newSession(t, rl)

	off := false
	gemini := models.Gemini
	app.UpdateSettings(state.SettingsUpdate{AutoRoute: &off, DefaultModel: &gemini})

	existing := app.CreateConversation()
	sub, err := s.Submit(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, existing, sub.ConversationID, "submits go to the current conversation")
	assert.False(t, rl.lastRequest().AutoRoute)
	assert.Equal(t, models.Gemini, rl.lastRequest().Model)
	assert.Len(t, app.Conversations(), 1)
}

func TestSubmitServerRejects(t *testing.T) {
	s, app := newSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"Too many requests"}`))
	}))

	sub, err := s.Submit(context.Background(), "hello", nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "Too many requests", statusErr.Message)

	conv, _ := app.Conversation(sub.ConversationID)
	assert.Equal(t, state.ErrorContent, conv.Messages[1].Content)
	assert.False(t, conv.Messages[1].IsStreaming)
	assert.False(t, app.StreamState().IsStreaming)
}

func TestSubmitStreamWithoutTerminalEvent(t *testing.T) {
	rl := &relay{events: []stream.Event{stream.ContentEvent("cut off")}}
	s, app := newSession(t, rl)

	sub, err := s.Submit(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, errNoTerminalEvent)

	conv, _ := app.Conversation(sub.ConversationID)
	assert.Equal(t, state.ErrorContent, conv.Messages[1].Content)
	assert.Equal(t, state.StreamState{}, app.StreamState())
}

func TestSubmitErrorEvent(t *testing.T) {
	rl := &relay{events: []stream.Event{
		stream.ContentEvent("some"),
		stream.ErrorEvent("An error occurred while processing your request"),
	}}
	s, app := newSession(t, rl)

	sub, err := s.Submit(context.Background(), "hello", nil)
	require.NoError(t, err, "an error event is a delivered outcome, not a transport failure")

	conv, _ := app.Conversation(sub.ConversationID)
	assert.Equal(t, state.ErrorContent, conv.Messages[1].Content)
}

func TestSubmitEmptyMessage(t *testing.T) {
	s, app := newSession(t, &relay{})
	_, err := s.Submit(context.Background(), " \n\t", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, app.Conversations())
}

func TestSubmitRejectedWhileStreaming(t *testing.T) {
	rl := &relay{
		events:  []stream.Event{stream.ContentEvent("slow"), stream.DoneEvent()},
		release: make(chan struct{}),
	}
	s, app := newSession(t, rl)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "first", nil)
		errc <- err
	}()

	require.Eventually(t, func() bool {
		c, ok := app.CurrentConversation()
		return ok && len(c.Messages) == 2
	}, 5*time.Second, 5*time.Millisecond)

	_, err := s.Submit(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrStreamInFlight)

	close(rl.release)
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first submit did not finish")
	}

	msgs := app.Messages()
	require.Len(t, msgs, 2, "the rejected submit added nothing")
	assert.Equal(t, "slow", msgs[1].Content)
}

func TestSubmitCancelled(t *testing.T) {
	rl := &relay{release: make(chan struct{})}
	s, app := newSession(t, rl)
	t.Cleanup(func() { close(rl.release) }) // runs before the server is closed

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Submit(ctx, "hello", nil)
	require.Error(t, err)
	assert.False(t, app.StreamState().IsStreaming)
	assert.Equal(t, state.ErrorContent, app.Messages()[1].Content)
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		json.NewEncoder(w).Encode(models.NewRegistry().All())
	}))
	defer srv.Close()

	descriptors, err := New(srv.URL, nil).Models(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 7)
	assert.Equal(t, models.Claude, descriptors[0].ID)
	assert.True(t, descriptors[0].IsAvailable)
}
