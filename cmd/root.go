// Package cmd provides the command-line interface for the triagebot tool.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triagebot",
	Short: "Triagebot converts Slack threads into JIRA tickets",
	Long: `Triagebot listens for mentions on Slack and, when mentioned inside a
reply thread, files the thread's root message as a JIRA ticket, relays the
root message's attachments into it, and replies in-thread with the ticket
link.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add the serve command
	rootCmd.AddCommand(serveCmd)

	// Add the version command
	rootCmd.AddCommand(versionCmd)
}
