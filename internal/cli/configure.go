package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/pdfbot/internal/config"
)

var configureToken string

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up pdfbot.
The wizard asks for the Telegram bot token, allowed users, the upload limit and
the log level. With --token the wizard is skipped and only the token is set.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureToken, "token", "", "set the Telegram bot token without prompting")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	base, loader, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cfg := base
	if configureToken != "" {
		cfg.Telegram.BotToken = configureToken
	} else {
		wizard := config.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout())
		cfg, err = wizard.Run(base)
		if err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(out, "\nYou can now start pdfbot with: pdfbot start")

	return nil
}
