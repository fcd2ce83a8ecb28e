package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/concierge/internal/cli"
	"github.com/aretw0/concierge/internal/presentation/graph"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted conversations",
	Long:  `List, inspect, and remove sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closer, err := openStore()
		if err != nil {
			return err
		}
		defer closer()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No active sessions found.")
			return nil
		}

		fmt.Println("Active Sessions:")
		for _, s := range sessions {
			fmt.Println("- " + s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-key>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		asGraph, _ := cmd.Flags().GetBool("graph")

		store, closer, err := openStore()
		if err != nil {
			return err
		}
		defer closer()

		s, err := store.Load(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", key, err)
		}

		if asGraph {
			fmt.Print(graph.GenerateMermaid(runtime.Workflow(), overlayFor(s)))
			return nil
		}

		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling session: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-key>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closer, err := openStore()
		if err != nil {
			return err
		}
		defer closer()

		failed := 0
		for _, key := range args {
			if err := store.Delete(cmd.Context(), key); err != nil {
				fmt.Printf("Error removing '%s': %v\n", key, err)
				failed++
			} else {
				fmt.Printf("Removed session '%s'\n", key)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d sessions could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionInspectCmd.Flags().Bool("graph", false, "Print the workflow as Mermaid with the session position highlighted")
}

func openStore() (ports.SessionStore, func(), error) {
	store, _, closer, err := cli.NewStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if closer != nil {
			_ = closer()
		}
	}, nil
}

// overlayFor marks the stages that precede the session's current one.
// Optional stages count only when the session holds their answer.
func overlayFor(s *domain.Session) *graph.Overlay {
	o := &graph.Overlay{Current: s.Stage}
	for _, st := range domain.Stages() {
		if st == s.Stage {
			break
		}
		switch {
		case st == domain.StageAwaitingSubCategory && s.SelectedSubCategory == "":
			continue
		case st == domain.StageAwaitingAddress && s.ServiceAddress == "":
			continue
		}
		o.Visited = append(o.Visited, st)
	}
	return o
}
