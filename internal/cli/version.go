package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printJSON(cmd.OutOrStdout(), map[string]string{
			"version": version,
			"name":    "sceneguard",
		})
	},
}
