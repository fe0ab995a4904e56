package state

import (
	"time"

	"solus.com/command-relay/internal/models"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type MessageMetadata struct {
	Intent         *models.IntentClassification `json:"intent,omitempty"`
	ProcessingTime int64                        `json:"processingTime,omitempty"` // milliseconds
	TokenCount     int                          `json:"tokenCount,omitempty"`
}

type Message struct {
	ID          string           `json:"id"`
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Model       models.ModelID   `json:"model,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Metadata    *MessageMetadata `json:"metadata,omitempty"`
	Citations   []string         `json:"citations,omitempty"`
	IsStreaming bool             `json:"isStreaming,omitempty"`
}

type Conversation struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Messages  []Message      `json:"messages"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Model     models.ModelID `json:"model,omitempty"`
}

// StreamState is the accumulation buffer of the in-flight assistant
// message. It is never persisted.
type StreamState struct {
	IsStreaming    bool
	CurrentModel   models.ModelID // empty when idle
	PartialContent string
}

type Settings struct {
	AutoRoute        bool           `json:"autoRoute"`
	DefaultModel     models.ModelID `json:"defaultModel"`
	ShowDebug        bool           `json:"showDebug"`
	ShowDebugPanel   bool           `json:"showDebugPanel"`
	StreamingEnabled bool           `json:"streamingEnabled"`
	Theme            string         `json:"theme"`
}

func DefaultSettings() Settings {
	return Settings{
		AutoRoute:        true,
		DefaultModel:     models.DefaultModel,
		StreamingEnabled: true,
		Theme:            "dark",
	}
}

// SettingsUpdate is a partial settings change; nil fields are left alone.
type SettingsUpdate struct {
	AutoRoute        *bool
	DefaultModel     *models.ModelID
	ShowDebug        *bool
	ShowDebugPanel   *bool
	StreamingEnabled *bool
	Theme            *string
}

// MessageUpdate is a partial message change; nil fields are left alone.
type MessageUpdate struct {
	Content     *string
	Model       *models.ModelID
	Metadata    *MessageMetadata
	Citations   []string
	IsStreaming *bool
}

// SnapshotKey names the persisted client state.
const SnapshotKey = "solus-command-storage"

// Snapshot is the persisted part of the application state.
type Snapshot struct {
	Conversations         []Conversation `json:"conversations"`
	CurrentConversationID *string        `json:"currentConversationId"`
	Settings              Settings       `json:"settings"`
}
