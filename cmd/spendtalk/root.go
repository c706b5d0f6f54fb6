package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "spendtalk",
		Short:         "Conversational expense tracker",
		Long:          "spendtalk records, searches and summarizes expenses from plain-language messages, asking follow-up questions when details are missing.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newExpensesCmd(),
	)
	return rootCmd
}

// withApp wires the application for one command run and closes it afterwards.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
