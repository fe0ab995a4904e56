package stream

import (
	"encoding/json"
	"fmt"
	"io"

	"solus.com/command-relay/internal/models"
)

type EventType string

const (
	EventIntent    EventType = "intent"
	EventContent   EventType = "content"
	EventCitations EventType = "citations"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Terminal reports whether t closes an event sequence.
func (t EventType) Terminal() bool {
	return t == EventDone || t == EventError
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Event is one frame of the outbound channel. Only the field matching
// Type is meaningful.
type Event struct {
	Type      EventType
	Intent    *models.IntentClassification
	Content   string
	Citations []string
	Error     string
}

func IntentEvent(c models.IntentClassification) Event {
	return Event{Type: EventIntent, Intent: &c}
}

func ContentEvent(text string) Event {
	return Event{Type: EventContent, Content: text}
}

func CitationsEvent(urls []string) Event {
	return Event{Type: EventCitations, Citations: urls}
}

func DoneEvent() Event {
	return Event{Type: EventDone}
}

func ErrorEvent(message string) Event {
	return Event{Type: EventError, Error: message}
}

// payload returns the value serialized on the data line.
func (e Event) payload() (any, error) {
	switch e.Type {
	case EventIntent:
		if e.Intent == nil {
			return nil, fmt.Errorf("intent event without classification")
		}
		return e.Intent, nil
	case EventContent:
		return e.Content, nil
	case EventCitations:
		if e.Citations == nil {
			return []string{}, nil
		}
		return e.Citations, nil
	case EventDone:
		return struct{}{}, nil
	case EventError:
		return ErrorPayload{Message: e.Error}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// MarshalFrame encodes e as "event: <name>\ndata: <json>\n\n".
func MarshalFrame(e Event) ([]byte, error) {
	p, err := e.payload()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type, err)
	}
	frame := make([]byte, 0, len(e.Type)+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, e.Type...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// WriteFrame writes one encoded frame to w.
func WriteFrame(w io.Writer, e Event) error {
	frame, err := MarshalFrame(e)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
