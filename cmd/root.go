package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spiffcs/reponews/config"
	"github.com/spiffcs/reponews/internal/log"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "reponews",
		Short: "Report new activity on your GitHub repositories",
		Long: `Checks your GitHub repositories for new issues, pull requests,
discussions, releases, tags, stargazers, and forks since the last run,
and e-mails you a report of anything it has not told you about before.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log.Initialize(opts.Verbosity, os.Stderr)
			if opts.EnvFile != "" {
				if err := godotenv.Load(opts.EnvFile); err != nil {
					return fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "Config file path (default "+config.DefaultConfigPath()+")")
	pf.StringVarP(&opts.EnvFile, "env", "E", "", "Load environment variables from this .env file")
	pf.CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v, -vv, -vvv)")

	addReportFlags(rootCmd, opts)

	rootCmd.AddCommand(NewCmdDump(opts))
	rootCmd.AddCommand(NewCmdConfig(opts))
	rootCmd.AddCommand(NewCmdState(opts))
	rootCmd.AddCommand(NewCmdRateLimit(opts))
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}

// addReportFlags registers the flags that only apply to the report run.
func addReportFlags(cmd *cobra.Command, opts *Options) {
	fl := cmd.Flags()
	fl.BoolVar(&opts.Print, "print", false, "Print the full e-mail to stdout instead of sending it")
	fl.BoolVar(&opts.PrintBody, "print-body", false, "Print the report body to stdout instead of sending it")
	fl.BoolVar(&opts.NoSave, "no-save", false, "Do not update the state file")
	fl.IntVar(&opts.Workers, "workers", opts.Workers, "Maximum concurrent activity fetches")
}
