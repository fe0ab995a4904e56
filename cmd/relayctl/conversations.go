package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"solus.com/command-relay/internal/state"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.close()

		convs := ws.state.Conversations()
		if len(convs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no conversations yet"))
			return nil
		}
		current := ws.state.CurrentConversationID()
		for _, c := range convs {
			marker := " "
			if c.ID == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s  %s\n", marker, shortID(c.ID), titleStyle.Render(c.Title),
				dimStyle.Render(fmt.Sprintf("%d messages, %s", len(c.Messages), c.UpdatedAt.Format("2006-01-02 15:04"))))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [conversation]",
	Short: "Print a conversation (the current one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.close()

		id := ws.state.CurrentConversationID()
		if len(args) == 1 {
			if id, err = resolveConversation(ws.state, args[0]); err != nil {
				return err
			}
		}
		c, ok := ws.state.Conversation(id)
		if !ok {
			return errors.New("no current conversation")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(c.Title))
		for _, m := range c.Messages {
			fmt.Fprintln(out)
			switch m.Role {
			case state.RoleUser:
				fmt.Fprintln(out, userStyle.Render("you"))
			default:
				fmt.Fprintln(out, badge(ws.registry, m.Model))
			}
			fmt.Fprintln(out, m.Content)
			for i, url := range m.Citations {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("[%d] %s", i+1, url)))
			}
			if m.Metadata != nil && m.Metadata.Intent != nil {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s, %d ms, %d chunks",
					m.Metadata.Intent.PrimaryIntent, m.Metadata.ProcessingTime, m.Metadata.TokenCount)))
			}
		}
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use <conversation>",
	Short: "Make a conversation current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConversation(args[0], func(ws *workspace, id string) error {
			ws.state.SetCurrentConversation(id)
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <conversation> <title...>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConversation(args[0], func(ws *workspace, id string) error {
			ws.state.UpdateConversationTitle(id, strings.Join(args[1:], " "))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConversation(args[0], func(ws *workspace, id string) error {
			ws.state.DeleteConversation(id)
			return nil
		})
	},
}

// withConversation runs fn on the conversation matching ref and saves.
func withConversation(ref string, fn func(ws *workspace, id string) error) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.close()

	id, err := resolveConversation(ws.state, ref)
	if err != nil {
		return err
	}
	if err := fn(ws, id); err != nil {
		return err
	}
	return ws.save()
}

// resolveConversation accepts a full id or an unambiguous id prefix.
func resolveConversation(app *state.AppState, ref string) (string, error) {
	var matches []string
	for _, c := range app.Conversations() {
		if c.ID == ref {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no conversation matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d conversations", ref, len(matches))
	}
}
