package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reponews/internal/state"
)

// NewCmdState creates the state command with subcommands.
func NewCmdState(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the tracking-state file",
	}

	cmd.AddCommand(NewCmdStatePath(opts))
	cmd.AddCommand(NewCmdStateShow(opts))

	return cmd
}

// NewCmdStatePath creates the state path subcommand.
func NewCmdStatePath(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the state file location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			status := "not found"
			if _, err := os.Stat(cfg.StateFile); err == nil {
				status = "exists"
			}
			fmt.Printf("%s (%s)\n", cfg.StateFile, status)
			return nil
		},
	}
}

// NewCmdStateShow creates the state show subcommand.
func NewCmdStateShow(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the parsed tracking state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			st, err := state.Load(cfg.StateFile)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(st.Repos, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal state to JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
