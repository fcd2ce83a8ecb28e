package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of concierge",
	// Skips config loading.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("concierge version %s\n", strings.TrimSpace(concierge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
