package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/aretw0/concierge/internal/cli"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultWidth = 80

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the concierge from the terminal",
	Long: `Starts an interactive conversation on stdin/stdout. Replies are printed
instead of sent, so the whole booking flow can be tried without a Twilio
account. Type /help for the commands that simulate WhatsApp interactions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")

		interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		width := defaultWidth
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}

		logger, err := cli.NewLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		// Logs would interleave with the conversation.
		if interactive {
			logger = logging.NewNop()
		}

		local := *cfg
		local.Gateway.Kind = config.GatewayConsole
		rt, err := cli.Build(&local, logger, cli.Options{
			Console:  os.Stdout,
			Markdown: interactive,
			Width:    width,
		})
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		if interactive {
			tui.PrintBanner(os.Stdout)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return cli.Chat(ctx, rt.App, os.Stdin, os.Stdout, from, interactive)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("from", "whatsapp:+15550000000", "Channel address to chat as")
}
