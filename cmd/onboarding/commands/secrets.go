package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Inspect the Slack client configuration",
}

var secretsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the configured secret holds a usable client configuration",
	Args:  cobra.NoArgs,
	RunE:  runSecretsCheck,
}

func init() {
	secretsCmd.AddCommand(secretsCheckCmd)
	rootCmd.AddCommand(secretsCmd)
}

func runSecretsCheck(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	cfg, err := loadConfig(p)
	if err != nil {
		return err
	}

	source, err := newSecretSource(cfg)
	if err != nil {
		return p.Error("failed to create secret source", err.Error(), nil)
	}

	clientCfg, err := source.ClientConfig(context.Background(), cfg.Secrets.Name)
	if err != nil {
		return p.ErrorWithContext(
			"client configuration unavailable",
			err.Error(),
			map[string]string{"Backend": cfg.Secrets.Backend, "Secret": cfg.Secrets.Name},
			[]string{"The secret must hold CLIENT_ID, CLIENT_SECRET and SCOPE"},
		)
	}
	if err := clientCfg.Validate(); err != nil {
		return p.Error("client configuration incomplete", err.Error(), nil)
	}

	p.Success("Secret '%s' is valid (client_id %s, scope %s)\n", cfg.Secrets.Name, clientCfg.ClientID, clientCfg.Scope)
	return nil
}
