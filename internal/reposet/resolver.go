// Package reposet computes the set of tracked repositories from affiliation
// membership, include patterns, exclude patterns, and the patterns keyed in
// the activity-policy table.
package reposet

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spiffcs/reponews/config"
	"github.com/spiffcs/reponews/internal/log"
	"github.com/spiffcs/reponews/internal/model"
)

// ErrNotFound marks a lookup of a nonexistent owner or repository. Lister
// implementations wrap it so the resolver can degrade to a warning instead
// of failing the run.
var ErrNotFound = errors.New("not found")

// Lister is the directory surface of the GitHub client used to enumerate
// candidate repositories.
type Lister interface {
	// AffiliatedRepos lists repositories connected to the authenticated
	// user through any of the given affiliation kinds.
	AffiliatedRepos(ctx context.Context, affiliations []model.Affiliation) ([]model.Repo, error)
	// OwnerRepos lists all repositories currently visible under an owner.
	OwnerRepos(ctx context.Context, owner string) ([]model.Repo, error)
	// Repo fetches a single repository by name.
	Repo(ctx context.Context, owner, name string) (model.Repo, error)
}

// Tracked pairs a resolved repository with whether it entered the set
// through affiliation, which selects the affiliated policy layer.
type Tracked struct {
	Repo       model.Repo
	Affiliated bool
}

// inclusions indexes the include/exclude patterns for resolution. Owner
// wildcards and exact entries are kept separate because wildcard inclusion
// requires a directory-listing call while exact inclusion is a point lookup.
type inclusions struct {
	owners   map[string]bool            // owners included via "owner/*"
	repos    map[string]map[string]bool // exact includes, owner -> names
	exOwners map[string]bool
	exRepos  map[string]map[string]bool
}

func buildInclusions(include, policyKeys, exclude []config.RepoPattern) *inclusions {
	inc := &inclusions{
		owners:   map[string]bool{},
		repos:    map[string]map[string]bool{},
		exOwners: map[string]bool{},
		exRepos:  map[string]map[string]bool{},
	}
	for _, p := range append(append([]config.RepoPattern{}, include...), policyKeys...) {
		if p.IsWildcard() {
			inc.owners[p.Owner] = true
		} else {
			if inc.repos[p.Owner] == nil {
				inc.repos[p.Owner] = map[string]bool{}
			}
			inc.repos[p.Owner][p.Name] = true
		}
	}
	// Exclusion wins over every inclusion path.
	for _, p := range exclude {
		if p.IsWildcard() {
			inc.exOwners[p.Owner] = true
			delete(inc.owners, p.Owner)
			delete(inc.repos, p.Owner)
		} else {
			if inc.exRepos[p.Owner] == nil {
				inc.exRepos[p.Owner] = map[string]bool{}
			}
			inc.exRepos[p.Owner][p.Name] = true
			delete(inc.repos[p.Owner], p.Name)
		}
	}
	return inc
}

func (inc *inclusions) excluded(r model.Repo) bool {
	return inc.exOwners[r.Owner] || inc.exRepos[r.Owner][r.Name]
}

// includedOwners returns the owners whose whole visible repo list is
// tracked, sorted for deterministic fetch order.
func (inc *inclusions) includedOwners() []string {
	owners := make([]string, 0, len(inc.owners))
	for o := range inc.owners {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners
}

// includedRepos returns the exact owner/name includes, skipping owners that
// are already wildcard-included, sorted for deterministic fetch order.
func (inc *inclusions) includedRepos() [][2]string {
	var out [][2]string
	owners := make([]string, 0, len(inc.repos))
	for o := range inc.repos {
		if !inc.owners[o] {
			owners = append(owners, o)
		}
	}
	sort.Strings(owners)
	for _, o := range owners {
		names := make([]string, 0, len(inc.repos[o]))
		for n := range inc.repos[o] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, [2]string{o, n})
		}
	}
	return out
}

// Resolve computes the tracked repository set: repositories affiliated with
// the authenticated user, plus everything matched by an include pattern or
// an activity.repo policy key, minus everything excluded. Repositories
// reachable through several paths are yielded once, on the first path, so
// affiliated repos keep their affiliated flag. Nonexistent included owners
// and repos are warnings, not errors.
func Resolve(ctx context.Context, lister Lister, cfg *config.Config) ([]Tracked, error) {
	inc := buildInclusions(cfg.IncludePatterns(), cfg.PolicyKeyPatterns(), cfg.ExcludePatterns())

	var tracked []Tracked
	seen := map[model.RepoID]bool{}
	add := func(r model.Repo, affiliated bool) {
		switch {
		case inc.excluded(r):
			log.Info("repo excluded by config", "repo", r.FullName())
		case seen[r.ID]:
			log.Debug("repo already resolved; skipping duplicate", "repo", r.FullName())
		default:
			seen[r.ID] = true
			tracked = append(tracked, Tracked{Repo: r, Affiliated: affiliated})
		}
	}

	if len(cfg.Affiliations()) > 0 {
		repos, err := lister.AffiliatedRepos(ctx, cfg.Affiliations())
		if err != nil {
			return nil, fmt.Errorf("failed to list affiliated repositories: %w", err)
		}
		for _, r := range repos {
			add(r, true)
		}
	}

	for _, owner := range inc.includedOwners() {
		repos, err := lister.OwnerRepos(ctx, owner)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Warn("included owner does not exist", "owner", owner)
				continue
			}
			return nil, fmt.Errorf("failed to list repositories for %s: %w", owner, err)
		}
		for _, r := range repos {
			add(r, false)
		}
	}

	for _, on := range inc.includedRepos() {
		r, err := lister.Repo(ctx, on[0], on[1])
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Warn("included repository does not exist", "repo", on[0]+"/"+on[1])
				continue
			}
			return nil, fmt.Errorf("failed to fetch repository %s/%s: %w", on[0], on[1], err)
		}
		add(r, false)
	}

	return tracked, nil
}
