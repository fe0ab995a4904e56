package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"

	"solus.com/command-relay/internal/models"
)

var frameSeparator = []byte("\n\n")

// Decoder turns the raw bytes of an event stream back into events. Input
// may be split at any byte; an incomplete trailing frame is held until the
// chunk that terminates it arrives. A Decoder knows nothing about
// conversation state.
type Decoder struct {
	buf     []byte
	Dropped int // frames skipped because they could not be parsed
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode appends chunk to the pending input and returns every event whose
// frame is now complete, in stream order.
func (d *Decoder) Decode(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		idx := bytes.Index(d.buf, frameSeparator)
		if idx < 0 {
			break
		}
		frame := d.buf[:idx]
		d.buf = d.buf[idx+len(frameSeparator):]

		if len(bytes.TrimSpace(frame)) == 0 {
			continue
		}
		ev, err := parseFrame(frame)
		if err != nil {
			d.Dropped++
			log.Printf("Skipping malformed stream frame: %v", err)
			continue
		}
		events = append(events, ev)
	}

	// Don't keep growing a backing array that has been consumed.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return events
}

// Pending reports how many bytes are buffered waiting for a frame terminator.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Flush discards any unterminated remainder. It returns true if bytes were
// dropped, which means the stream ended mid-frame.
func (d *Decoder) Flush() bool {
	dropped := len(bytes.TrimSpace(d.buf)) > 0
	d.buf = nil
	return dropped
}

func parseFrame(frame []byte) (Event, error) {
	var name string
	var data [][]byte

	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			value := line[len("data:"):]
			value = bytes.TrimPrefix(value, []byte(" "))
			data = append(data, value)
		}
	}

	if len(data) == 0 {
		return Event{}, errors.New("frame has no data line")
	}
	payload := bytes.Join(data, []byte("\n"))

	switch EventType(name) {
	case EventIntent:
		var c models.IntentClassification
		if err := json.Unmarshal(payload, &c); err != nil {
			return Event{}, err
		}
		return IntentEvent(c), nil
	case EventContent:
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return Event{}, err
		}
		return ContentEvent(text), nil
	case EventCitations:
		var urls []string
		if err := json.Unmarshal(payload, &urls); err != nil {
			return Event{}, err
		}
		return CitationsEvent(urls), nil
	case EventDone:
		var obj map[string]any
		if err := json.Unmarshal(payload, &obj); err != nil {
			return Event{}, err
		}
		return DoneEvent(), nil
	case EventError:
		var p ErrorPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, err
		}
		return ErrorEvent(p.Message), nil
	default:
		return Event{}, errors.New("unknown event " + name)
	}
}

// Pump reads r until EOF, decoding as it goes and handing each event to fn.
// A read error other than io.EOF is returned after all complete frames
// received before it have been delivered.
func Pump(r io.Reader, fn func(Event)) error {
	d := NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range d.Decode(buf[:n]) {
				fn(ev)
			}
		}
		if err == io.EOF {
			if d.Flush() {
				log.Println("Event stream ended with an incomplete frame")
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ReadAll decodes every event in r.
func ReadAll(r io.Reader) ([]Event, error) {
	var events []Event
	err := Pump(r, func(ev Event) {
		events = append(events, ev)
	})
	return events, err
}
