package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"leavedesk/internal/config"
	"leavedesk/internal/db"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create leavedesk.yml",
		Long:  "Config lives in <workspace>/leavedesk.yml. Flags and LEAVEDESK_* environment values override it per run.",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := masked(*a.Config)
			if viper.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default leavedesk.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			baseURL := strings.TrimSpace(viper.GetString("base-url"))
			if baseURL == "" {
				return fmt.Errorf("--base-url (or LEAVEDESK_BASE_URL) is required")
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			raw := config.GenerateDefault(baseURL)
			if _, err := config.FromYAML([]byte(raw)); err != nil {
				return err
			}
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// masked hides webhook secrets from printed config.
func masked(cfg config.Config) config.Config {
	hooks := make([]config.WebhookConfig, len(cfg.Webhooks))
	copy(hooks, cfg.Webhooks)
	for i := range hooks {
		if hooks[i].Secret != "" {
			hooks[i].Secret = "********"
		}
	}
	cfg.Webhooks = hooks
	return cfg
}
