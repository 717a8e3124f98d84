// Package diff computes which fetched activity is genuinely new relative to
// the persisted tracking state.
//
// The engine is a pure transform over explicit values: previous state in,
// report items and next state out. Fetching goes through the injected Source
// so the whole pipeline tests against in-memory fixtures.
package diff

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/reponews/internal/log"
	"github.com/spiffcs/reponews/internal/model"
	"github.com/spiffcs/reponews/internal/reposet"
	"github.com/spiffcs/reponews/internal/state"
)

// DefaultWorkers bounds parallel fetches when Engine.Workers is unset.
const DefaultWorkers = 4

// Source fetches raw activity events for one repository and activity type.
// Implementations perform their own retries; an error returned here is
// either exhausted-transient (the unit is skipped for this run) or fatal
// (the run aborts), distinguished by Engine.Transient.
type Source interface {
	ListEvents(ctx context.Context, repo model.Repo, typ model.ActivityType, after time.Time) ([]model.ActivityEvent, error)
}

// Engine resolves new activity against stored cutoffs.
type Engine struct {
	Source Source
	// Now is the run timestamp used for fresh cutoffs and lifecycle
	// notices. Defaults to time.Now.
	Now func() time.Time
	// Workers bounds the number of concurrent (repo, type) fetches.
	Workers int
	// Transient classifies fetch errors. A transient failure skips the
	// (repo, type) unit with its cutoff left unadvanced; anything else
	// aborts the run. Nil means every error aborts.
	Transient func(error) bool
}

// fetchUnit is one independent (repository, activity type) fetch.
type fetchUnit struct {
	repo   model.Repo
	typ    model.ActivityType
	after  time.Time
	events []model.ActivityEvent
	err    error
}

// repoPlan is the per-repository work sheet built before fetching and
// merged after all of the repo's fetches complete.
type repoPlan struct {
	tracked reposet.Tracked
	policy  model.Policy
	old     *state.RepoState
	next    *state.RepoState
	units   []*fetchUnit
	notices []model.ReportItem
}

// Run computes the report items and next state for one run. The returned
// items are in production order; the report package handles chronological
// ordering. prev is not mutated.
func (e *Engine) Run(ctx context.Context, tracked []reposet.Tracked, policies map[model.RepoID]model.Policy, prev *state.State) ([]model.ReportItem, *state.State, error) {
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	plans := e.plan(tracked, policies, prev, now)
	if err := e.fetch(ctx, plans); err != nil {
		return nil, nil, err
	}

	next := state.New()
	var items []model.ReportItem
	for _, p := range plans {
		items = append(items, p.notices...)
		items = append(items, e.merge(p)...)
		next.Repos[p.tracked.Repo.ID] = p.next
	}
	items = append(items, untrackedNotices(prev, next, now)...)
	return items, next, nil
}

// plan decides, per tracked repository, which lifecycle notices to emit,
// which cutoffs start fresh, and which (repo, type) units to fetch.
func (e *Engine) plan(tracked []reposet.Tracked, policies map[model.RepoID]model.Policy, prev *state.State, now time.Time) []*repoPlan {
	var plans []*repoPlan
	for _, tr := range tracked {
		repo := tr.Repo
		pol := policies[repo.ID]
		if len(pol.EnabledTypes()) == 0 {
			// Tracking requires at least one enabled type; the repo is
			// left out of the next state and reported as untracked.
			log.Info("no tracked activity configured", "repo", repo.FullName())
			continue
		}

		p := &repoPlan{
			tracked: tr,
			policy:  pol,
			old:     prev.Repos[repo.ID],
			next: &state.RepoState{
				Owner:   repo.Owner,
				Name:    repo.Name,
				Cutoffs: map[model.ActivityType]time.Time{},
			},
		}

		if p.old == nil {
			// First sighting: report the repo itself, start every cutoff
			// at now, and fetch nothing. History is never backfilled.
			log.Info("now tracking", "repo", repo.FullName())
			p.notices = append(p.notices, model.TrackedNotice{At: now, Repo: repo})
			for _, t := range pol.EnabledTypes() {
				p.next.Cutoffs[t] = now
			}
			plans = append(plans, p)
			continue
		}

		if p.old.FullName() != repo.FullName() {
			log.Info("repository renamed", "from", p.old.FullName(), "to", repo.FullName())
			p.notices = append(p.notices, model.RenamedNotice{At: now, OldFullName: p.old.FullName(), Repo: repo})
		}
		p.next.SeenDraftReleases = append([]string(nil), p.old.SeenDraftReleases...)

		for _, t := range pol.EnabledTypes() {
			cutoff, ok := p.old.Cutoffs[t]
			if !ok {
				// Type newly enabled: fresh cutoff, no fetch, same
				// no-backfill rule as a first sighting.
				p.next.Cutoffs[t] = now
				continue
			}
			p.units = append(p.units, &fetchUnit{repo: repo, typ: t, after: cutoff})
		}
		plans = append(plans, p)
	}
	return plans
}

// fetch runs every unit through the bounded worker pool. Each unit writes
// only its own slot, so no locking is needed; results are merged
// per-repository afterwards regardless of completion order. A fatal error
// cancels the remaining fetches and aborts the run.
func (e *Engine) fetch(ctx context.Context, plans []*repoPlan) error {
	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range plans {
		for _, u := range p.units {
			u := u
			g.Go(func() error {
				events, err := e.Source.ListEvents(gctx, u.repo, u.typ, u.after)
				if err != nil {
					if e.Transient != nil && e.Transient(err) {
						u.err = err
						return nil
					}
					return fmt.Errorf("fetching %s for %s: %w", u.typ, u.repo.FullName(), err)
				}
				u.events = events
				return nil
			})
		}
	}
	return g.Wait()
}

// merge folds one repository's fetch results into its next state and
// returns the reportable events.
func (e *Engine) merge(p *repoPlan) []model.ReportItem {
	var raw []model.ActivityEvent
	for _, u := range p.units {
		if u.err != nil {
			// Exhausted retries: skip this unit for the run and keep the
			// old cutoff so the missed window is retried next time.
			log.Warn("fetch failed; skipping for this run",
				"repo", u.repo.FullName(), "type", u.typ, "error", u.err)
			p.next.Cutoffs[u.typ] = u.after
			continue
		}
		// Advance the cutoff to the newest fetched timestamp, before any
		// filtering: suppressed events still count as observed.
		cutoff := u.after
		for _, ev := range u.events {
			if ev.Timestamp().After(cutoff) {
				cutoff = ev.Timestamp()
			}
		}
		p.next.Cutoffs[u.typ] = cutoff
		raw = append(raw, u.events...)
	}

	events := e.filterMine(p, raw)
	events = e.filterReleases(p, events)
	events = e.filterReleasedTags(p, events)

	items := make([]model.ReportItem, 0, len(events))
	for _, ev := range events {
		items = append(items, ev)
	}
	return items
}

func (e *Engine) filterMine(p *repoPlan, events []model.ActivityEvent) []model.ActivityEvent {
	if p.policy.MyActivity {
		return events
	}
	out := events[:0]
	for _, ev := range events {
		if ev.Mine() {
			log.Info("event authored by current user; not reporting", "repo", p.tracked.Repo.FullName())
			continue
		}
		out = append(out, ev)
	}
	return out
}

// filterReleases applies the prerelease/draft modifiers and the
// draft-then-published suppression. Every draft observed is remembered in
// the seen set, even when draft reporting is off; a published release whose
// ID is in the set was already effectively known to the user and is never
// re-reported.
func (e *Engine) filterReleases(p *repoPlan, events []model.ActivityEvent) []model.ActivityEvent {
	if !p.policy.Releases {
		return events
	}
	seen := make(map[string]bool, len(p.next.SeenDraftReleases))
	for _, id := range p.next.SeenDraftReleases {
		seen[id] = true
	}
	out := events[:0]
	for _, ev := range events {
		rel, ok := ev.(model.ReleaseEvent)
		if !ok {
			out = append(out, ev)
			continue
		}
		if rel.IsDraft && !seen[rel.ID] {
			seen[rel.ID] = true
			p.next.SeenDraftReleases = append(p.next.SeenDraftReleases, rel.ID)
		}
		switch {
		case !rel.IsDraft && seen[rel.ID]:
			log.Info("release already reported as draft; not reporting", "repo", p.tracked.Repo.FullName(), "tag", rel.TagName)
		case rel.IsDraft && !p.policy.Drafts:
			log.Info("draft release; not reporting", "repo", p.tracked.Repo.FullName(), "tag", rel.TagName)
		case rel.IsPrerelease && !p.policy.Prereleases:
			log.Info("prerelease; not reporting", "repo", p.tracked.Repo.FullName(), "tag", rel.TagName)
		default:
			out = append(out, ev)
		}
	}
	return out
}

// filterReleasedTags drops tag events whose tag backs a reported release,
// unless the policy asks for both.
func (e *Engine) filterReleasedTags(p *repoPlan, events []model.ActivityEvent) []model.ActivityEvent {
	if !p.policy.Releases || !p.policy.Tags || p.policy.ReleasedTags {
		return events
	}
	releaseTags := map[string]bool{}
	for _, ev := range events {
		if rel, ok := ev.(model.ReleaseEvent); ok {
			releaseTags[rel.TagName] = true
		}
	}
	if len(releaseTags) == 0 {
		return events
	}
	out := events[:0]
	for _, ev := range events {
		if tag, ok := ev.(model.TagEvent); ok && releaseTags[tag.Name] {
			log.Info("tag also present as a release; not reporting", "repo", p.tracked.Repo.FullName(), "tag", tag.Name)
			continue
		}
		out = append(out, ev)
	}
	return out
}

// untrackedNotices reports repositories that were in the previous state but
// did not make it into the next one, dropping their records. Re-tracking
// later is indistinguishable from first tracking.
func untrackedNotices(prev, next *state.State, now time.Time) []model.ReportItem {
	var gone []model.RepoID
	for id := range prev.Repos {
		if _, ok := next.Repos[id]; !ok {
			gone = append(gone, id)
		}
	}
	sort.Slice(gone, func(i, j int) bool {
		return prev.Repos[gone[i]].FullName() < prev.Repos[gone[j]].FullName()
	})
	var items []model.ReportItem
	for _, id := range gone {
		rs := prev.Repos[id]
		log.Info("no longer tracking", "repo", rs.FullName())
		items = append(items, model.UntrackedNotice{
			At:   now,
			Repo: model.Repo{ID: id, Owner: rs.Owner, Name: rs.Name},
		})
	}
	return items
}
