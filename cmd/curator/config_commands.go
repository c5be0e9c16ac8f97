package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/config"
	"curator/internal/ipc"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigReloadCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set classifier.api_key before running the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(stdout, "Config path:       %s\n", ctx.configPath)
			}
			fmt.Fprintf(stdout, "Downloading dir:   %s\n", cfg.Paths.DownloadingDir)
			fmt.Fprintf(stdout, "Completed dir:     %s\n", cfg.Paths.CompletedDir)
			fmt.Fprintf(stdout, "Library dir:       %s\n", cfg.Paths.LibraryDir)
			fmt.Fprintf(stdout, "Data dir:          %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(stdout, "Socket:            %s\n", cfg.Paths.SocketPath)
			fmt.Fprintf(stdout, "Quiet window:      %s\n", cfg.QuietWindow())
			fmt.Fprintf(stdout, "Poll interval:     %s\n", cfg.PollInterval())
			fmt.Fprintf(stdout, "Stall timeout:     %s\n", cfg.StallTimeout())
			fmt.Fprintf(stdout, "Max attempts:      %d\n", cfg.Worker.MaxAttempts)
			fmt.Fprintf(stdout, "Classifier model:  %s\n", cfg.Classifier.Model)
			fmt.Fprintf(stdout, "Classifier dryrun: %s\n", yesNo(cfg.Classifier.DryRun))
			fmt.Fprintf(stdout, "Unsorted dir:      %s\n", cfg.Library.UnsortedDir)
			fmt.Fprintf(stdout, "Overwrite:         %s\n", yesNo(cfg.Library.OverwriteExisting))
			fmt.Fprintf(stdout, "Ntfy topic:        %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigReloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the running daemon to re-read its configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ConfigReload()
				if err != nil {
					return err
				}
				if !resp.Reloaded {
					return fmt.Errorf("reload failed: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration reloaded")
				return nil
			})
		},
	}
}
