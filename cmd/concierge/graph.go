package main

import (
	"fmt"

	"github.com/aretw0/concierge/internal/presentation/graph"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the booking workflow visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the booking stages and the triggers that move between them.`,
	// Skips config loading.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(graph.GenerateMermaid(runtime.Workflow(), nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
