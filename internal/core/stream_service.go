package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/provider"
	"solus.com/command-relay/internal/stream"
)

// ClientErrorMessage is the only failure text a client ever sees.
const ClientErrorMessage = "An error occurred while processing your request"

var (
	ErrEmptyMessage = errors.New("message is required")
	ErrUnknownModel = errors.New("unknown model")
	ErrNoAdapter    = errors.New("no adapter available")
)

// ChatRequest is one user message to relay.
type ChatRequest struct {
	Message   string
	Model     models.ModelID // empty: not requested
	AutoRoute bool
	RequestID string // for log correlation only
}

// StreamService owns the lifecycle of each relayed request: classification,
// adapter selection and framing of everything into stream events.
type StreamService struct {
	registry   *models.Registry
	classifier Classifier
	adapters   *provider.Table
}

func NewStreamService(registry *models.Registry, classifier Classifier, adapters *provider.Table) *StreamService {
	return &StreamService{
		registry:   registry,
		classifier: classifier,
		adapters:   adapters,
	}
}

// Validate checks a request before any stream is opened.
func (s *StreamService) Validate(req ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	if req.Model != "" && !s.registry.Known(req.Model) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}
	return nil
}

// Start runs req in a new goroutine and returns the channel it produces.
// The goroutine is the channel's only writer and closes it exactly once,
// after a terminal event or as soon as ctx is cancelled. Callers must
// Validate first.
func (s *StreamService) Start(ctx context.Context, req ChatRequest) <-chan stream.Event {
	out := make(chan stream.Event, 16)
	go func() {
		defer close(out)
		s.run(ctx, req, out)
	}()
	return out
}

func (s *StreamService) run(ctx context.Context, req ChatRequest, out chan<- stream.Event) {
	send := func(ev stream.Event) error {
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	target := s.registry.Resolve(models.DefaultModel)
	if req.Model != "" {
		target = s.registry.Resolve(req.Model)
		if target != req.Model {
			s.logf(req, "Requested model %q is unavailable, using %q", req.Model, target)
		}
	} else if req.AutoRoute {
		intent := s.classifier.Classify(ctx, req.Message)
		if err := send(stream.IntentEvent(intent)); err != nil {
			s.logf(req, "Client went away before intent was sent")
			return
		}
		target = intent.SuggestedModel
		s.logf(req, "Classified as %s (%.2f), routing to %s", intent.PrimaryIntent, intent.Confidence, target)
	}

	result, err := s.dispatch(ctx, target, req.Message, func(delta string) error {
		return send(stream.ContentEvent(delta))
	})
	if ctx.Err() != nil {
		// Client disconnected: stop without a terminal event.
		s.logf(req, "Stream to %s abandoned: %v", target, ctx.Err())
		return
	}
	if err != nil {
		s.logf(req, "Stream error from %s: %v", target, err)
		send(stream.ErrorEvent(ClientErrorMessage))
		return
	}

	if len(result.Citations) > 0 {
		if send(stream.CitationsEvent(result.Citations)) != nil {
			return
		}
	}
	send(stream.DoneEvent())
}

func (s *StreamService) dispatch(ctx context.Context, target models.ModelID, message string, emit provider.Emit) (provider.Result, error) {
	adapter, _, ok := s.adapters.Lookup(target)
	if !ok {
		return provider.Result{}, fmt.Errorf("%w for model %q", ErrNoAdapter, target)
	}
	return adapter.Stream(ctx, message, emit)
}

func (s *StreamService) logf(req ChatRequest, format string, args ...any) {
	if req.RequestID != "" {
		format = "[" + req.RequestID + "] " + format
	}
	log.Printf(format, args...)
}
