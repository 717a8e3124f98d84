package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reponews/config"
)

// NewCmdConfig creates the config command with subcommands.
func NewCmdConfig(opts *Options) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		Long: `Show or manage configuration.

When run without arguments, shows the loaded configuration.

Subcommands:
  init  Create a starter config file
  path  Show the config file location
  show  Show the loaded config (same as bare 'reponews config')`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(opts, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format (yaml, json)")

	cmd.AddCommand(NewCmdConfigInit(opts))
	cmd.AddCommand(NewCmdConfigPath(opts))
	cmd.AddCommand(NewCmdConfigShow(opts))

	return cmd
}

// NewCmdConfigInit creates the config init subcommand.
func NewCmdConfigInit(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a starter config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(opts)
		},
	}
}

// NewCmdConfigPath creates the config path subcommand.
func NewCmdConfigPath(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the config file location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(opts)
			status := "not found"
			if _, err := os.Stat(path); err == nil {
				status = "exists"
			}
			fmt.Printf("%s (%s)\n", path, status)
			return nil
		},
	}
}

// NewCmdConfigShow creates the config show subcommand.
func NewCmdConfigShow(opts *Options) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the loaded configuration",
		Long:  `Show the configuration after parsing, validation, and default filling.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(opts, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format (yaml, json)")

	return cmd
}

func configPath(opts *Options) string {
	if opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	return config.DefaultConfigPath()
}

func runConfigInit(opts *Options) error {
	path := configPath(opts)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'reponews config show' to view it", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.MinimalConfig()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Printf("Created config file: %s\n\n", path)
	fmt.Println("Edit this file, then run 'reponews dump' to check what will be tracked.")
	return nil
}

func runConfigShow(opts *Options, format string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	switch format {
	case "yaml":
		yamlStr, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		fmt.Print(yamlStr)
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("invalid format: %s (must be yaml or json)", format)
	}
	return nil
}
