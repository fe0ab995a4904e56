package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"solus.com/command-relay/internal/core"
	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/stream"
)

// ChatStreamer validates and runs relayed chat requests.
type ChatStreamer interface {
	Validate(req core.ChatRequest) error
	Start(ctx context.Context, req core.ChatRequest) <-chan stream.Event
}

type APIHandler struct {
	streamer ChatStreamer
	registry *models.Registry
}

func NewAPIHandler(streamer ChatStreamer, registry *models.Registry) *APIHandler {
	return &APIHandler{streamer: streamer, registry: registry}
}

type ChatRequest struct {
	Message        string         `json:"message"`
	Model          models.ModelID `json:"model,omitempty"`
	AutoRoute      *bool          `json:"autoRoute,omitempty"` // nil means true
	ConversationID string         `json:"conversationId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// ChatHandler relays one message and streams the response as SSE frames.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chatReq := core.ChatRequest{
		Message:   req.Message,
		Model:     req.Model,
		AutoRoute: req.AutoRoute == nil || *req.AutoRoute,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if err := h.streamer.Validate(chatReq); err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "Message is required")
		case errors.Is(err, core.ErrUnknownModel):
			writeError(w, http.StatusBadRequest, "Unknown model")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for ev := range h.streamer.Start(ctx, chatReq) {
		if err := stream.WriteFrame(w, ev); err != nil {
			log.Printf("[%s] Error writing %s frame, dropping stream: %v", chatReq.RequestID, ev.Type, err)
			cancel()
			return
		}
		flusher.Flush()
	}
}

// ModelsHandler lists every known model with its availability.
func (h *APIHandler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.All())
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
