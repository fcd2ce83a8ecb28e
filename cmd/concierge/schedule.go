package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/concierge/internal/cli"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Send a message to recipients after a delay",
	Long: `Queues a broadcast and keeps the process alive until it is dispatched.
Jobs live in memory, so interrupting the command cancels the job.`,
	Example: `  concierge schedule --to whatsapp:+15550001 --to whatsapp:+15550002 --message "We open at 9" --delay 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetStringSlice("to")
		message, _ := cmd.Flags().GetString("message")
		delay, _ := cmd.Flags().GetInt("delay")

		logger, err := cli.NewLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		rt, err := cli.Build(cfg, logger, cli.Options{Console: os.Stdout})
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		receipt, err := rt.App.ScheduleMessage(ctx, to, message, delay)
		if err != nil {
			return err
		}
		fmt.Printf("Scheduled job %s for %s (%s)\n", receipt.JobID, strings.Join(to, ", "), receipt.FireAt.Format("15:04:05"))

		job, err := rt.App.Wait(ctx, receipt.JobID)
		if err != nil {
			if _, cancelErr := rt.App.Cancel(receipt.JobID); cancelErr == nil {
				fmt.Printf("Canceled job %s\n", receipt.JobID)
			}
			return err
		}
		if job.Status != domain.JobFired {
			return fmt.Errorf("job %s %s: %s", job.ID, job.Status, job.Error)
		}
		fmt.Printf("Job %s fired\n", job.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().StringSlice("to", nil, "Recipient channel address (repeatable)")
	scheduleCmd.Flags().StringP("message", "m", "", "Message body")
	scheduleCmd.Flags().Int("delay", 1, "Delay in whole minutes (minimum 1)")
	_ = scheduleCmd.MarkFlagRequired("to")
	_ = scheduleCmd.MarkFlagRequired("message")
}
