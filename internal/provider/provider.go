// Package provider adapts each AI backend's native response protocol into
// plain text increments plus an optional citation list.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"solus.com/command-relay/internal/models"
)

// Emit hands one text increment to the caller. A non-nil error means the
// consumer is gone and the adapter must stop.
type Emit func(delta string) error

// Result carries what an adapter produces besides the text increments.
type Result struct {
	Citations []string
}

// Adapter streams a backend's answer to message through emit. Adapters
// never frame wire events themselves.
type Adapter interface {
	Stream(ctx context.Context, message string, emit Emit) (Result, error)
}

// TokenStream yields text deltas from a live provider stream. Recv returns
// io.EOF once the stream is complete. Implementations drop frames that
// carry no text.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// TokenSource opens a token stream for one message.
type TokenSource interface {
	Open(ctx context.Context, message string) (TokenStream, error)
}

// TokenAdapter relays every delta of a TokenSource.
type TokenAdapter struct {
	name   string
	source TokenSource
}

func NewTokenAdapter(name string, source TokenSource) *TokenAdapter {
	return &TokenAdapter{name: name, source: source}
}

func (a *TokenAdapter) Stream(ctx context.Context, message string, emit Emit) (Result, error) {
	ts, err := a.source.Open(ctx, message)
	if err != nil {
		return Result{}, fmt.Errorf("%s: failed to open stream: %w", a.name, err)
	}
	defer func() {
		if err := ts.Close(); err != nil {
			log.Printf("Error closing %s stream: %v", a.name, err)
		}
	}()

	for {
		delta, err := ts.Recv()
		if errors.Is(err, io.EOF) {
			return Result{}, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s: stream failed: %w", a.name, err)
		}
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return Result{}, err
		}
	}
}

// Table dispatches a model id to its adapter.
type Table struct {
	adapters map[models.ModelID]Adapter
}

func NewTable() *Table {
	return &Table{adapters: make(map[models.ModelID]Adapter)}
}

// Register binds id to a. It is meant to be called during startup only.
func (t *Table) Register(id models.ModelID, a Adapter) {
	t.adapters[id] = a
}

// Lookup returns the adapter for id. Models without an adapter of their own
// are served by the default model's adapter.
func (t *Table) Lookup(id models.ModelID) (Adapter, models.ModelID, bool) {
	if a, ok := t.adapters[id]; ok {
		return a, id, true
	}
	a, ok := t.adapters[models.DefaultModel]
	if ok && id != models.DefaultModel {
		log.Printf("No adapter registered for model %q, using %q", id, models.DefaultModel)
	}
	return a, models.DefaultModel, ok
}
