package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/slrbot/bot/app"
	botconfig "github.com/m3rciful/slrbot/bot/config"
	"github.com/m3rciful/slrbot/core/buildinfo"
	corecmd "github.com/m3rciful/slrbot/core/cmd"
	coreconfig "github.com/m3rciful/slrbot/core/config"
)

const (
	configEnvVar      = "SLR_CONFIG"
	defaultConfigPath = "config.yaml"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:          "slrbot",
		Short:        "SLR BOOST order intake bot",
		Long:         "slrbot takes orders from Telegram users, numbers them SLR-YYYY-NNNN and forwards them to the back office.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"path to the YAML config (default $"+configEnvVar+" or "+defaultConfigPath+")")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newOrdersCmd(flags),
		newMigrateCmd(flags),
		newVersionCmd(),
	)
	return rootCmd
}

func (f *rootFlags) resolve() string {
	return corecmd.ResolveConfigPath(corecmd.Options{
		ConfigPath:        f.configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
	})
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        flags.configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return botconfig.Load(path)
				},
				Bootstrap: app.Bootstrap,
			})
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and the optional JSON import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := botconfig.LoadStorage(flags.resolve())
			if err != nil {
				return err
			}
			if cfg.DatabaseConfig() == nil {
				return fmt.Errorf("migrate: storage driver %q has no schema", cfg.Storage.Driver)
			}
			s, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s storage up to date\n", cfg.Storage.Driver)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "slrbot", buildinfo.String())
			return err
		},
	}
}

// openStorage keeps maintenance commands quiet: their output is the result.
func openStorage(ctx context.Context, cfg *botconfig.Config) (*app.Storage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return app.OpenStorage(ctx, cfg, app.Options{
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
}
