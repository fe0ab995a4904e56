// Package state holds the client's conversation state and folds decoded
// stream events into it.
package state

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"solus.com/command-relay/internal/models"
)

const (
	defaultTitle   = "New Conversation"
	titleMaxLength = 50
)

// AppState is the client's application state. Every mutation goes through
// its methods; it is safe for concurrent use.
type AppState struct {
	mu sync.RWMutex

	conversations         []Conversation
	currentConversationID string
	streamState           StreamState
	settings              Settings

	now func() time.Time
}

func NewAppState() *AppState {
	return &AppState{
		settings: DefaultSettings(),
		now:      time.Now,
	}
}

// CreateConversation adds an empty conversation at the front of the list,
// makes it current and returns its id.
func (a *AppState) CreateConversation() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	c := Conversation{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.conversations = append([]Conversation{c}, a.conversations...)
	a.currentConversationID = c.ID
	return c.ID
}

// DeleteConversation removes id. If it was current, the first remaining
// conversation becomes current.
func (a *AppState) DeleteConversation(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexOf(id)
	if idx < 0 {
		return false
	}
	a.conversations = slices.Delete(a.conversations, idx, idx+1)
	if a.currentConversationID == id {
		a.currentConversationID = ""
		if len(a.conversations) > 0 {
			a.currentConversationID = a.conversations[0].ID
		}
	}
	return true
}

// SetCurrentConversation selects id; an empty id clears the selection.
func (a *AppState) SetCurrentConversation(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id != "" && a.indexOf(id) < 0 {
		return false
	}
	a.currentConversationID = id
	return true
}

func (a *AppState) UpdateConversationTitle(id, title string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexOf(id)
	if idx < 0 {
		return false
	}
	a.conversations[idx].Title = title
	a.conversations[idx].UpdatedAt = a.now()
	return true
}

// AddMessage appends msg. The first user message of a conversation also
// names it.
func (a *AppState) AddMessage(conversationID string, msg Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexOf(conversationID)
	if idx < 0 {
		return false
	}
	c := &a.conversations[idx]
	if len(c.Messages) == 0 && msg.Role == RoleUser {
		c.Title = deriveTitle(msg.Content)
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = a.now()
	return true
}

// UpdateMessage applies the non-nil fields of u to a message.
func (a *AppState) UpdateMessage(conversationID, messageID string, u MessageUpdate) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexOf(conversationID)
	if idx < 0 {
		return false
	}
	c := &a.conversations[idx]
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.ID != messageID {
			continue
		}
		if u.Content != nil {
			m.Content = *u.Content
		}
		if u.Model != nil {
			m.Model = *u.Model
		}
		if u.Metadata != nil {
			md := *u.Metadata
			m.Metadata = &md
		}
		if u.Citations != nil {
			m.Citations = slices.Clone(u.Citations)
		}
		if u.IsStreaming != nil {
			m.IsStreaming = *u.IsStreaming
		}
		c.UpdatedAt = a.now()
		return true
	}
	return false
}

// SetStreaming toggles the stream flag. Stopping also clears the buffer
// and the active model.
func (a *AppState) SetStreaming(streaming bool, model models.ModelID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.streamState.IsStreaming = streaming
	a.streamState.CurrentModel = model
	if !streaming {
		a.streamState.CurrentModel = ""
		a.streamState.PartialContent = ""
	}
}

func (a *AppState) setStreamModel(model models.ModelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streamState.CurrentModel = model
}

func (a *AppState) AppendStreamContent(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streamState.PartialContent += text
}

func (a *AppState) ClearStreamContent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streamState.PartialContent = ""
}

// BeginStream marks a stream as in flight unless one already is. It
// reports whether the caller now owns the stream.
func (a *AppState) BeginStream(model models.ModelID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.streamState.IsStreaming {
		return false
	}
	a.streamState = StreamState{IsStreaming: true, CurrentModel: model}
	return true
}

func (a *AppState) StreamState() StreamState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.streamState
}

func (a *AppState) Settings() Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

func (a *AppState) UpdateSettings(u SettingsUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.settings
	if u.AutoRoute != nil {
		s.AutoRoute = *u.AutoRoute
	}
	if u.DefaultModel != nil {
		s.DefaultModel = *u.DefaultModel
	}
	if u.ShowDebug != nil {
		s.ShowDebug = *u.ShowDebug
	}
	if u.ShowDebugPanel != nil {
		s.ShowDebugPanel = *u.ShowDebugPanel
	}
	if u.StreamingEnabled != nil {
		s.StreamingEnabled = *u.StreamingEnabled
	}
	if u.Theme != nil {
		s.Theme = *u.Theme
	}
}

func (a *AppState) CurrentConversationID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentConversationID
}

// Conversation returns a copy of conversation id.
func (a *AppState) Conversation(id string) (Conversation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	idx := a.indexOf(id)
	if idx < 0 {
		return Conversation{}, false
	}
	return cloneConversation(a.conversations[idx]), true
}

func (a *AppState) CurrentConversation() (Conversation, bool) {
	return a.Conversation(a.CurrentConversationID())
}

// Conversations returns copies of all conversations, newest first.
func (a *AppState) Conversations() []Conversation {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]Conversation, len(a.conversations))
	for i, c := range a.conversations {
		result[i] = cloneConversation(c)
	}
	return result
}

// Messages returns the messages of the current conversation.
func (a *AppState) Messages() []Message {
	c, ok := a.CurrentConversation()
	if !ok {
		return nil
	}
	return c.Messages
}

// Snapshot returns the persistable part of the state.
func (a *AppState) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{
		Conversations: make([]Conversation, len(a.conversations)),
		Settings:      a.settings,
	}
	for i, c := range a.conversations {
		snap.Conversations[i] = cloneConversation(c)
	}
	if a.currentConversationID != "" {
		id := a.currentConversationID
		snap.CurrentConversationID = &id
	}
	return snap
}

// Restore replaces the persisted part of the state with snap. Nothing is
// streaming after a restore, whatever the snapshot says.
func (a *AppState) Restore(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conversations = make([]Conversation, len(snap.Conversations))
	for i, c := range snap.Conversations {
		c = cloneConversation(c)
		if c.Messages == nil {
			c.Messages = []Message{}
		}
		for j := range c.Messages {
			c.Messages[j].IsStreaming = false
		}
		a.conversations[i] = c
	}
	a.currentConversationID = ""
	if snap.CurrentConversationID != nil && a.indexOf(*snap.CurrentConversationID) >= 0 {
		a.currentConversationID = *snap.CurrentConversationID
	}
	a.settings = snap.Settings
	if a.settings.DefaultModel == "" {
		a.settings.DefaultModel = models.DefaultModel
	}
	a.streamState = StreamState{}
}

func (a *AppState) indexOf(id string) int {
	return slices.IndexFunc(a.conversations, func(c Conversation) bool { return c.ID == id })
}

func cloneConversation(c Conversation) Conversation {
	c.Messages = slices.Clone(c.Messages)
	for i := range c.Messages {
		m := &c.Messages[i]
		m.Citations = slices.Clone(m.Citations)
		if m.Metadata != nil {
			md := *m.Metadata
			m.Metadata = &md
		}
	}
	return c
}

// deriveTitle truncates text to titleMaxLength characters, marking the cut
// with an ellipsis.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxLength {
		return text
	}
	return string(runes[:titleMaxLength]) + "..."
}
