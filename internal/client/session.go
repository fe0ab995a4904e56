package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/state"
	"solus.com/command-relay/internal/stream"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrStreamInFlight = errors.New("a response is already streaming")

	errNoTerminalEvent = errors.New("stream ended without done or error")
)

// Session submits user messages on behalf of one AppState.
type Session struct {
	app    *state.AppState
	client *Client
}

func NewSession(app *state.AppState, client *Client) *Session {
	return &Session{app: app, client: client}
}

// Submitted identifies the messages one Submit created.
type Submitted struct {
	ConversationID     string
	UserMessageID      string
	AssistantMessageID string
}

// Submit sends text as a new user message of the current conversation,
// creating one if needed, and folds the response into the state. onEvent,
// if set, sees every event after it has been applied.
//
// The returned error is the transport failure, if any. The assistant
// message carries the error text in that case and streaming is always
// off when Submit returns.
func (s *Session) Submit(ctx context.Context, text string, onEvent func(stream.Event)) (Submitted, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Submitted{}, ErrEmptyMessage
	}
	if !s.app.BeginStream(models.DefaultModel) {
		return Submitted{}, ErrStreamInFlight
	}

	convID := s.app.CurrentConversationID()
	if convID == "" {
		convID = s.app.CreateConversation()
	}

	now := time.Now()
	sub := Submitted{
		ConversationID:     convID,
		UserMessageID:      uuid.NewString(),
		AssistantMessageID: uuid.NewString(),
	}
	s.app.AddMessage(convID, state.Message{
		ID:        sub.UserMessageID,
		Role:      state.RoleUser,
		Content:   text,
		Timestamp: now,
	})
	s.app.AddMessage(convID, state.Message{
		ID:          sub.AssistantMessageID,
		Role:        state.RoleAssistant,
		Model:       models.DefaultModel,
		Timestamp:   now,
		IsStreaming: true,
	})

	settings := s.app.Settings()
	req := ChatRequest{
		Message:        text,
		AutoRoute:      settings.AutoRoute,
		ConversationID: convID,
	}
	if !settings.AutoRoute {
		req.Model = settings.DefaultModel
	}

	reducer := state.NewReducer(s.app, convID, sub.AssistantMessageID)
	err := s.client.Chat(ctx, req, func(ev stream.Event) {
		reducer.Apply(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	})
	if err == nil && !reducer.Finished() {
		err = errNoTerminalEvent
	}
	if err != nil {
		reducer.Fail(err)
	}
	return sub, err
}
