package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	youStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	botStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle = lipgloss.NewStyle().Faint(true)
)

func newChatCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, hintStyle.Render("Describe an expense, ask for a summary, or type exit."))

			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, youStyle.Render("you › "))
				if !sc.Scan() {
					fmt.Fprintln(out)
					return sc.Err()
				}
				line := strings.TrimSpace(sc.Text())
				switch strings.ToLower(line) {
				case "":
					continue
				case "exit", "quit", "bye":
					return nil
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.TurnTimeout)
				reply, err := a.engine.HandleTurn(ctx, sessionID, line)
				cancel()
				if err != nil {
					fmt.Fprintln(out, errStyle.Render("error: "+err.Error()))
					continue
				}
				fmt.Fprintln(out, botStyle.Render("spendtalk › ")+reply.Text)
			}
		}),
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume a session id (needs HISTORY_FILE to survive restarts)")
	return cmd
}
