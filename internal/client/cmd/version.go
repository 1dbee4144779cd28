package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"proxylink/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "proxylink %s\n", version.GetVersion())
	},
}
