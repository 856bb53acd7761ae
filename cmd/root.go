package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "trailnet",
	Short: "Linear-referenced path network manager",
	Long: "Maintains a network of path segments with linearly referenced events:\n" +
		"elevation profiles, boundary events derived from administrative layers,\n" +
		"and event resynchronization across geometry edits.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
