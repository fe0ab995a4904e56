package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"solus.com/command-relay/internal/client"
	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/state"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the server's models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptors, err := client.New(serverURL, nil).Models(context.Background())
		if err != nil {
			return err
		}
		registry := models.NewRegistry()
		for _, d := range descriptors {
			status := "available"
			if !d.IsAvailable {
				status = "unavailable"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s %s\n", d.ID, badge(registry, d.ID),
				dimStyle.Render(fmt.Sprintf("%s, %s, %s", d.Category, d.Provider, status)))
		}
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings [key value]",
	Short: "Show or change settings (auto-route, default-model)",
	Args:  cobra.MatchAll(cobra.MaximumNArgs(2), func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return fmt.Errorf("missing value for %q", args[0])
		}
		return nil
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.close()

		if len(args) == 2 {
			update, err := parseSetting(ws.registry, args[0], args[1])
			if err != nil {
				return err
			}
			ws.state.UpdateSettings(update)
			if err := ws.save(); err != nil {
				return err
			}
		}

		s := ws.state.Settings()
		fmt.Fprintf(cmd.OutOrStdout(), "auto-route     %t\ndefault-model  %s\n", s.AutoRoute, badge(ws.registry, s.DefaultModel))
		return nil
	},
}

func parseSetting(registry *models.Registry, key, value string) (state.SettingsUpdate, error) {
	switch key {
	case "auto-route":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return state.SettingsUpdate{}, fmt.Errorf("auto-route: %w", err)
		}
		return state.SettingsUpdate{AutoRoute: &v}, nil
	case "default-model":
		id := models.ModelID(value)
		if !registry.Known(id) {
			return state.SettingsUpdate{}, fmt.Errorf("unknown model %q", value)
		}
		return state.SettingsUpdate{DefaultModel: &id}, nil
	default:
		return state.SettingsUpdate{}, fmt.Errorf("unknown setting %q", key)
	}
}
