package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"SignalPilot/internal/di"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collector, live trader and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()

		if _, err := os.Stat(configPath); hotReload && err == nil {
			app.ConfigPath = configPath
		}
		fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("SignalPilot"), dimStyle.Render(fmt.Sprintf("env=%s backend=%s", cfg.Environment, cfg.Storage.Backend)))

		// blocks until SIGINT/SIGTERM
		return app.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&hotReload, "watch", true, "reload strategy thresholds when the config file changes")
}
