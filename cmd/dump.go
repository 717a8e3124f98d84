package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spiffcs/reponews/internal/model"
	"github.com/spiffcs/reponews/internal/reposet"
)

// NewCmdDump creates the dump command.
func NewCmdDump(opts *Options) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Show the tracked repositories and their activity settings",
		Long: `Resolves the tracked repository set and each repository's activity
settings, without fetching any activity or touching the state file. Useful
for checking what a config change does before the next run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDump(cmd, opts, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")

	return cmd
}

// dumpEntry is one repository in the JSON dump.
type dumpEntry struct {
	Repo       string       `json:"repo"`
	URL        string       `json:"url"`
	Affiliated bool         `json:"affiliated"`
	Activity   model.Policy `json:"activity"`
}

func runDump(cmd *cobra.Command, opts *Options, format string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	tracked, policies, err := resolveTracked(ctx, client, cfg)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		entries := make([]dumpEntry, 0, len(tracked))
		for _, tr := range tracked {
			entries = append(entries, dumpEntry{
				Repo:       tr.Repo.FullName(),
				URL:        tr.Repo.URL,
				Affiliated: tr.Affiliated,
				Activity:   policies[tr.Repo.ID],
			})
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal dump to JSON: %w", err)
		}
		fmt.Println(string(data))
	case "table":
		printDumpTable(tracked, policies)
	default:
		return fmt.Errorf("invalid format: %s (must be table or json)", format)
	}
	return nil
}

func printDumpTable(tracked []reposet.Tracked, policies map[model.RepoID]model.Policy) {
	if len(tracked) == 0 {
		fmt.Println("No repositories tracked.")
		return
	}

	repoColor := color.New(color.FgCyan, color.Bold)
	onColor := color.New(color.FgGreen)
	offColor := color.New(color.FgHiBlack)

	for _, tr := range tracked {
		pol := policies[tr.Repo.ID]
		header := repoColor.Sprint(tr.Repo.FullName())
		if tr.Affiliated {
			header += " (affiliated)"
		}
		fmt.Println(header)

		var parts []string
		for _, t := range model.ActivityTypes() {
			if pol.Enabled(t) {
				parts = append(parts, onColor.Sprint(string(t)))
			} else {
				parts = append(parts, offColor.Sprint(string(t)))
			}
		}
		fmt.Printf("  %s\n", strings.Join(parts, "  "))

		var mods []string
		if pol.Releases && !pol.Drafts {
			mods = append(mods, "no drafts")
		}
		if pol.Releases && !pol.Prereleases {
			mods = append(mods, "no prereleases")
		}
		if pol.Releases && pol.Tags && !pol.ReleasedTags {
			mods = append(mods, "released tags folded into releases")
		}
		if pol.MyActivity {
			mods = append(mods, "includes own activity")
		}
		if len(mods) > 0 {
			fmt.Printf("  %s\n", offColor.Sprint(strings.Join(mods, ", ")))
		}
	}
}
