package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/pdfbot/internal/daemon"
	"github.com/harun/pdfbot/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pdfbot daemon service",
	Long: `Start the pdfbot daemon service in the foreground.
The daemon polls Telegram for updates until it receives SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, loader, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pidFile := cfg.PIDFile()
	if daemon.IsRunning(pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", pidFile)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log, daemon.WithConfigPath(loader.GetConfigPath()))
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pdfbot started (config: %s). Press Ctrl+C to stop.\n", loader.GetConfigPath())

	d.Wait()
	return nil
}
