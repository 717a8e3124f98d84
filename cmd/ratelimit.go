package cmd

import (
	"fmt"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/spf13/cobra"
)

// NewCmdRateLimit creates the ratelimit command. A run against many tracked
// repositories spends one GraphQL point per (repo, type) page, so being able
// to check the remaining quota before a run matters.
func NewCmdRateLimit(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit",
		Short: "Check GitHub API rate limit status",
		Long:  `Display current GitHub API rate limit status including remaining quota and reset time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRateLimit(cmd, opts)
		},
	}
}

func runRateLimit(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	limits, err := client.RateLimits(ctx)
	if err != nil {
		return fmt.Errorf("failed to get rate limits: %w", err)
	}

	fmt.Println("GitHub API Rate Limits:")
	fmt.Println()
	printLimit("Core API:", limits.Core)
	printLimit("GraphQL: ", limits.GraphQL)
	return nil
}

func printLimit(label string, rate *gh.Rate) {
	if rate == nil {
		return
	}
	resetIn := time.Until(rate.Reset.Time).Round(time.Second)
	if resetIn < 0 {
		resetIn = 0
	}
	fmt.Printf("%s  %d/%d remaining (resets in %s)\n", label, rate.Remaining, rate.Limit, resetIn)
}
