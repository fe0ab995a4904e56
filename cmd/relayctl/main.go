// Command relayctl is a terminal client for the relay server. It keeps its
// conversations in a local sqlite file between runs.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"solus.com/command-relay/internal/client"
	"solus.com/command-relay/internal/config"
	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/state"
	"solus.com/command-relay/internal/store"
)

var (
	serverURL string
	stateDB   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Chat with the command relay from the terminal",
	Long: `relayctl sends messages to the command relay and streams the answers.

Conversations and settings are kept in a local sqlite file
(RELAY_STATE_DB, default solus_state.db).

Examples:
  relayctl send "summarize the latest Go release notes"
  relayctl send --model gemini "describe a sunset over the sea"
  relayctl list
  relayctl show`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutput(os.Stderr)
		}
	},
}

func init() {
	// Quiet unless --verbose.
	log.SetOutput(io.Discard)
	cfg := config.LoadClientConfig()

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", cfg.ServerURL, "relay server URL")
	rootCmd.PersistentFlags().StringVar(&stateDB, "db", cfg.StateDB, "local state database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(sendCmd, listCmd, showCmd, useCmd, renameCmd, deleteCmd, modelsCmd, settingsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// workspace is the state a command operates on.
type workspace struct {
	store    *store.SQLiteStore
	state    *state.AppState
	registry *models.Registry
}

func openWorkspace() (*workspace, error) {
	st, err := store.NewSQLiteStore(stateDB)
	if err != nil {
		return nil, err
	}
	app := state.NewAppState()
	if err := st.Load(app, state.SnapshotKey); err != nil {
		st.Close()
		return nil, err
	}
	return &workspace{store: st, state: app, registry: models.NewRegistry()}, nil
}

func (w *workspace) save() error {
	return w.store.Save(w.state, state.SnapshotKey)
}

func (w *workspace) close() {
	if err := w.store.Close(); err != nil {
		log.Printf("Error closing state database: %v", err)
	}
}

func (w *workspace) session() *client.Session {
	return client.NewSession(w.state, client.New(serverURL, nil))
}

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#71717a"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444"))
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a1a1aa"))
)

// badge renders a model name in its registry colour.
func badge(registry *models.Registry, id models.ModelID) string {
	name := string(id)
	if d, ok := registry.Get(id); ok {
		name = d.Name
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(registry.Color(id))).
		Render("[" + name + "]")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
