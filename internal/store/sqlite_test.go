package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/state"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadMissingSnapshot(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.LoadSnapshot(state.SnapshotKey)
	require.NoError(t, err)
	assert.Nil(t, snap)

	app := state.NewAppState()
	require.NoError(t, s.Load(app, state.SnapshotKey))
	assert.Empty(t, app.Conversations())
}

func TestSaveAndLoadAppState(t *testing.T) {
	s := newTestStore(t)

	app := state.NewAppState()
	id := app.CreateConversation()
	app.AddMessage(id, state.Message{ID: "u1", Role: state.RoleUser, Content: "what is new in go?"})
	app.AddMessage(id, state.Message{
		ID: "a1", Role: state.RoleAssistant, Content: "plenty", Model: models.Perplexity,
		Citations: []string{"https://go.dev"}, IsStreaming: true,
	})
	off := false
	app.UpdateSettings(state.SettingsUpdate{AutoRoute: &off})
	require.True(t, app.BeginStream(models.Perplexity))

	require.NoError(t, s.Save(app, state.SnapshotKey))

	restored := state.NewAppState()
	require.NoError(t, s.Load(restored, state.SnapshotKey))

	assert.Equal(t, id, restored.CurrentConversationID())
	assert.False(t, restored.Settings().AutoRoute)
	assert.False(t, restored.StreamState().IsStreaming)

	msgs := restored.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "plenty", msgs[1].Content)
	assert.Equal(t, []string{"https://go.dev"}, msgs[1].Citations)
	assert.False(t, msgs[1].IsStreaming)
}

func TestSaveReplacesSnapshot(t *testing.T) {
	s := newTestStore(t)

	app := state.NewAppState()
	app.CreateConversation()
	require.NoError(t, s.Save(app, state.SnapshotKey))

	app.CreateConversation()
	require.NoError(t, s.Save(app, state.SnapshotKey))

	snap, err := s.LoadSnapshot(state.SnapshotKey)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Conversations, 2)

	require.NoError(t, s.DeleteSnapshot(state.SnapshotKey))
	snap, err = s.LoadSnapshot(state.SnapshotKey)
	require.NoError(t, err)
	assert.Nil(t, snap)
}
