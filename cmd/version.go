package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version, overridable at build time.
var Version = "1.0.0"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the triagebot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("triagebot %s\n", Version)
	},
}
