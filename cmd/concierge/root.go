package main

import (
	"fmt"
	"os"

	"github.com/aretw0/concierge/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Concierge is a WhatsApp booking assistant",
	Long: `Concierge walks customers through booking a home service over WhatsApp:
service, location, provider, date, address, slot and payment.

Configuration is read from concierge.yaml, CONCIERGE_* environment
variables and flags, in increasing order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, path)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default ./concierge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	bindFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// bindFlag lets a flag override the config key it names. Unset flags fall
// back to the file, the environment and the defaults.
func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
