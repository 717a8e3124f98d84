package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reponews/config"
	"github.com/spiffcs/reponews/internal/diff"
	"github.com/spiffcs/reponews/internal/ghclient"
	"github.com/spiffcs/reponews/internal/log"
	"github.com/spiffcs/reponews/internal/model"
	"github.com/spiffcs/reponews/internal/notifier"
	"github.com/spiffcs/reponews/internal/policy"
	"github.com/spiffcs/reponews/internal/report"
	"github.com/spiffcs/reponews/internal/reposet"
	"github.com/spiffcs/reponews/internal/state"
)

func loadConfig(opts *Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func newClient(ctx context.Context, cfg *config.Config) (*ghclient.Client, error) {
	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}
	return ghclient.NewClient(ctx, cfg.APIURL, token)
}

// resolveTracked computes the tracked repository set and each repository's
// resolved activity policy.
func resolveTracked(ctx context.Context, client *ghclient.Client, cfg *config.Config) ([]reposet.Tracked, map[model.RepoID]model.Policy, error) {
	tracked, err := reposet.Resolve(ctx, client, cfg)
	if err != nil {
		return nil, nil, err
	}
	policies := make(map[model.RepoID]model.Policy, len(tracked))
	for _, tr := range tracked {
		policies[tr.Repo.ID] = policy.Resolve(cfg, tr.Repo.Owner, tr.Repo.Name, tr.Affiliated)
	}
	return tracked, policies, nil
}

// runReport is the default command: fetch new activity, deliver the report,
// and persist the advanced cutoffs.
func runReport(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// A corrupt state file aborts here: treating it as empty would
	// re-report years of history on the next run.
	prev, err := state.Load(cfg.StateFile)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	viewer, err := client.AuthenticatedUser(ctx)
	if err != nil {
		return err
	}
	log.Info("authenticated", "user", viewer)

	tracked, policies, err := resolveTracked(ctx, client, cfg)
	if err != nil {
		return err
	}
	log.Info("resolved tracked set", "repos", len(tracked))

	engine := &diff.Engine{
		Source:    client,
		Workers:   opts.Workers,
		Transient: ghclient.IsTransient,
	}
	items, next, err := engine.Run(ctx, tracked, policies, prev)
	if err != nil {
		return err
	}
	items = report.Order(items)

	// Delivery runs before the state save: losing a report is recoverable
	// only if the cutoffs that would have suppressed it were never written.
	if err := deliver(cfg, opts, items); err != nil {
		return err
	}

	if opts.NoSave {
		log.Info("state save disabled; not updating", "file", cfg.StateFile)
		return nil
	}
	return state.Save(cfg.StateFile, next)
}

// deliver sends the report, or prints it when asked. An empty report is
// delivered nowhere.
func deliver(cfg *config.Config, opts *Options, items []model.ReportItem) error {
	if len(items) == 0 {
		log.Info("no new activity")
		return nil
	}
	body := report.Body(items)

	if opts.PrintBody {
		fmt.Println(body)
		return nil
	}
	msg, err := notifier.Compose(cfg, body)
	if err != nil {
		return err
	}
	if opts.Print {
		encoded, err := msg.Encode()
		if err != nil {
			return err
		}
		fmt.Print(encoded)
		return nil
	}
	mailer, err := notifier.NewMailer(cfg.SMTP)
	if err != nil {
		return err
	}
	if err := mailer.Send(msg); err != nil {
		return err
	}
	log.Info("report sent", "to", msg.To, "items", len(items))
	return nil
}
