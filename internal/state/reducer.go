package state

import (
	"log"
	"strings"
	"time"

	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/stream"
)

// ErrorContent replaces the placeholder message when a stream fails.
const ErrorContent = "Sorry, an error occurred. Please try again."

// Reducer folds the events of one response stream into an AppState. It
// targets a single placeholder assistant message created before the
// request was sent.
type Reducer struct {
	app            *AppState
	conversationID string
	messageID      string

	full      strings.Builder
	intent    *models.IntentClassification
	citations []string
	tokens    int
	started   time.Time
	finished  bool
}

func NewReducer(app *AppState, conversationID, messageID string) *Reducer {
	return &Reducer{
		app:            app,
		conversationID: conversationID,
		messageID:      messageID,
		started:        app.now(),
	}
}

// Apply folds ev into the state. Events after a terminal one are ignored.
func (r *Reducer) Apply(ev stream.Event) {
	if r.finished {
		log.Printf("Ignoring %s event after end of stream", ev.Type)
		return
	}

	switch ev.Type {
	case stream.EventIntent:
		if ev.Intent == nil {
			return
		}
		intent := *ev.Intent
		r.intent = &intent
		r.app.setStreamModel(intent.SuggestedModel)

	case stream.EventContent:
		r.full.WriteString(ev.Content)
		r.tokens++
		r.app.AppendStreamContent(ev.Content)

	case stream.EventCitations:
		r.citations = append([]string(nil), ev.Citations...)

	case stream.EventDone:
		r.complete()

	case stream.EventError:
		r.fail()
	}
}

// Fail handles a transport failure before any terminal event arrived.
func (r *Reducer) Fail(err error) {
	if r.finished {
		return
	}
	log.Printf("Stream transport failed: %v", err)
	r.fail()
}

// Finished reports whether a terminal event (or failure) has been applied.
func (r *Reducer) Finished() bool {
	return r.finished
}

// Content is the text accumulated so far.
func (r *Reducer) Content() string {
	return r.full.String()
}

func (r *Reducer) complete() {
	r.finished = true

	content := r.full.String()
	model := models.DefaultModel
	if r.intent != nil {
		model = r.intent.SuggestedModel
	}
	metadata := &MessageMetadata{
		Intent:         r.intent,
		ProcessingTime: r.app.now().Sub(r.started).Milliseconds(),
		TokenCount:     r.tokens,
	}
	streaming := false

	update := MessageUpdate{
		Content:     &content,
		Model:       &model,
		Metadata:    metadata,
		IsStreaming: &streaming,
	}
	if len(r.citations) > 0 {
		update.Citations = r.citations
	}
	r.app.UpdateMessage(r.conversationID, r.messageID, update)
	r.app.SetStreaming(false, "")
}

func (r *Reducer) fail() {
	r.finished = true

	content := ErrorContent
	streaming := false
	r.app.UpdateMessage(r.conversationID, r.messageID, MessageUpdate{
		Content:     &content,
		IsStreaming: &streaming,
	})
	r.app.SetStreaming(false, "")
}
