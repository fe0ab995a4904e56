package state

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/stream"
)

// pending sets up a conversation with a user message and an empty
// assistant placeholder, the way a submit does.
func pending(t *testing.T) (*AppState, string, string) {
	t.Helper()
	a := newTestState()
	convID := a.CreateConversation()
	a.AddMessage(convID, Message{ID: "user-1", Role: RoleUser, Content: "question"})
	a.AddMessage(convID, Message{ID: "asst-1", Role: RoleAssistant, Model: models.Claude, IsStreaming: true})
	require.True(t, a.BeginStream(models.Claude))
	return a, convID, "asst-1"
}

func assistant(t *testing.T, a *AppState, convID string) Message {
	t.Helper()
	c, ok := a.Conversation(convID)
	require.True(t, ok)
	require.Len(t, c.Messages, 2)
	return c.Messages[1]
}

func TestReducerIntentContentCitationsDone(t *testing.T) {
	a, convID, msgID := pending(t)
	r := NewReducer(a, convID, msgID)

	intent := models.IntentClassification{
		PrimaryIntent: models.IntentResearch, Confidence: 0.8,
		SuggestedModel: models.Perplexity, Reasoning: "web", Keywords: []string{"k"},
	}
	r.Apply(stream.IntentEvent(intent))
	assert.Equal(t, models.Perplexity, a.StreamState().CurrentModel)
	assert.Equal(t, "", assistant(t, a, convID).Content, "intent does not touch the message")

	r.Apply(stream.ContentEvent("Hello"))
	r.Apply(stream.ContentEvent(", world"))
	assert.Equal(t, "Hello, world", a.StreamState().PartialContent)
	assert.True(t, a.StreamState().IsStreaming)

	r.Apply(stream.CitationsEvent([]string{"https://a.example"}))
	r.Apply(stream.DoneEvent())

	m := assistant(t, a, convID)
	assert.Equal(t, "Hello, world", m.Content)
	assert.Equal(t, models.Perplexity, m.Model)
	assert.Equal(t, []string{"https://a.example"}, m.Citations)
	require.NotNil(t, m.Metadata)
	assert.Equal(t, &intent, m.Metadata.Intent)
	assert.Equal(t, 2, m.Metadata.TokenCount)
	assert.Positive(t, m.Metadata.ProcessingTime)
	assert.False(t, m.IsStreaming)

	assert.Equal(t, StreamState{}, a.StreamState())
	assert.True(t, r.Finished())
}

func TestReducerDoneWithoutIntentUsesDefaultModel(t *testing.T) {
	a, convID, msgID := pending(t)
	r := NewReducer(a, convID, msgID)

	r.Apply(stream.ContentEvent("plain"))
	r.Apply(stream.DoneEvent())

	m := assistant(t, a, convID)
	assert.Equal(t, "plain", m.Content)
	assert.Equal(t, models.Claude, m.Model)
	assert.Nil(t, m.Citations)
	require.NotNil(t, m.Metadata)
	assert.Nil(t, m.Metadata.Intent)
}

func TestReducerErrorEvent(t *testing.T) {
	a, convID, msgID := pending(t)
	r := NewReducer(a, convID, msgID)

	r.Apply(stream.ContentEvent("partial answer"))
	r.Apply(stream.ErrorEvent("An error occurred while processing your request"))

	m := assistant(t, a, convID)
	assert.Equal(t, ErrorContent, m.Content)
	assert.False(t, m.IsStreaming)
	assert.Equal(t, StreamState{}, a.StreamState())

	// late events are ignored
	r.Apply(stream.ContentEvent("late"))
	r.Apply(stream.DoneEvent())
	assert.Equal(t, ErrorContent, assistant(t, a, convID).Content)
}

func TestReducerTransportFailure(t *testing.T) {
	a, convID, msgID := pending(t)
	r := NewReducer(a, convID, msgID)

	r.Apply(stream.ContentEvent("half"))
	r.Fail(errors.New("connection reset by peer"))

	assert.Equal(t, ErrorContent, assistant(t, a, convID).Content)
	assert.Equal(t, StreamState{}, a.StreamState())

	// Fail after a terminal event is a no-op
	a2, convID2, msgID2 := pending(t)
	r2 := NewReducer(a2, convID2, msgID2)
	r2.Apply(stream.ContentEvent("ok"))
	r2.Apply(stream.DoneEvent())
	r2.Fail(errors.New("eof"))
	assert.Equal(t, "ok", assistant(t, a2, convID2).Content)
}

func TestReducerContentEqualsConcatenationAcrossSplits(t *testing.T) {
	// a ~400 byte response delivered as many small content frames
	var frames bytes.Buffer
	var want string
	for i := 0; i < 40; i++ {
		piece := "token-" + string(rune('a'+i%26)) + " ✓ "
		want += piece
		require.NoError(t, stream.WriteFrame(&frames, stream.ContentEvent(piece)))
	}
	require.NoError(t, stream.WriteFrame(&frames, stream.DoneEvent()))
	raw := frames.Bytes()

	splits := [][]int{
		nil,
		{len(raw) / 3, 2 * len(raw) / 3},
		{1, 137, len(raw) - 2},
	}
	for _, cuts := range splits {
		a, convID, msgID := pending(t)
		r := NewReducer(a, convID, msgID)
		d := stream.NewDecoder()

		prev := 0
		for _, cut := range append(cuts, len(raw)) {
			for _, ev := range d.Decode(raw[prev:cut]) {
				r.Apply(ev)
			}
			prev = cut
		}
		assert.Equal(t, want, assistant(t, a, convID).Content, "cuts %v", cuts)
		assert.Equal(t, want, r.Content())
	}
}
