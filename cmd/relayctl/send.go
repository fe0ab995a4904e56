package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/state"
	"solus.com/command-relay/internal/stream"
)

var (
	sendModel       string
	sendNoAutoRoute bool
	sendNew         bool
)

var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send a message and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendModel, "model", "m", "", "send to this model instead of auto-routing")
	sendCmd.Flags().BoolVar(&sendNoAutoRoute, "no-auto-route", false, "skip intent classification and use the default model")
	sendCmd.Flags().BoolVar(&sendNew, "new", false, "start a new conversation")
}

func runSend(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.close()

	if sendModel != "" && !ws.registry.Known(models.ModelID(sendModel)) {
		return fmt.Errorf("unknown model %q", sendModel)
	}
	if sendNew {
		ws.state.CreateConversation()
	}

	// Flags only apply to this message; the saved settings stay as they were.
	saved := ws.state.Settings()
	applySendFlags(ws.state)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	var citations []string
	sub, submitErr := ws.session().Submit(ctx, strings.Join(args, " "), func(ev stream.Event) {
		switch ev.Type {
		case stream.EventIntent:
			fmt.Fprintf(out, "%s %s\n", badge(ws.registry, ev.Intent.SuggestedModel),
				dimStyle.Render(fmt.Sprintf("%s (%.0f%%) %s", ev.Intent.PrimaryIntent, ev.Intent.Confidence*100, ev.Intent.Reasoning)))
		case stream.EventContent:
			fmt.Fprint(out, ev.Content)
		case stream.EventCitations:
			citations = ev.Citations
		case stream.EventError:
			fmt.Fprintln(out)
			fmt.Fprintln(out, errorStyle.Render(state.ErrorContent))
		case stream.EventDone:
			fmt.Fprintln(out)
		}
	})

	for i, url := range citations {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("[%d] %s", i+1, url)))
	}

	ws.state.UpdateSettings(state.SettingsUpdate{AutoRoute: &saved.AutoRoute, DefaultModel: &saved.DefaultModel})
	if err := ws.save(); err != nil {
		return err
	}
	if submitErr != nil {
		if sub.ConversationID != "" {
			fmt.Fprintln(out, errorStyle.Render(state.ErrorContent))
		}
		return submitErr
	}
	return nil
}

func applySendFlags(app *state.AppState) {
	switch {
	case sendModel != "":
		off := false
		model := models.ModelID(sendModel)
		app.UpdateSettings(state.SettingsUpdate{AutoRoute: &off, DefaultModel: &model})
	case sendNoAutoRoute:
		off := false
		app.UpdateSettings(state.SettingsUpdate{AutoRoute: &off})
	}
}
