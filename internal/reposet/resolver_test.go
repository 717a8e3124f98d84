package reposet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spiffcs/reponews/config"
	"github.com/spiffcs/reponews/internal/model"
)

// fakeLister serves a fixed repository directory.
type fakeLister struct {
	affiliated []model.Repo
	byOwner    map[string][]model.Repo
	failWith   error
}

func (f *fakeLister) AffiliatedRepos(_ context.Context, _ []model.Affiliation) ([]model.Repo, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.affiliated, nil
}

func (f *fakeLister) OwnerRepos(_ context.Context, owner string) ([]model.Repo, error) {
	repos, ok := f.byOwner[owner]
	if !ok {
		return nil, fmt.Errorf("%w: owner %s", ErrNotFound, owner)
	}
	return repos, nil
}

func (f *fakeLister) Repo(_ context.Context, owner, name string) (model.Repo, error) {
	for _, r := range f.byOwner[owner] {
		if r.Name == name {
			return r, nil
		}
	}
	return model.Repo{}, fmt.Errorf("%w: repo %s/%s", ErrNotFound, owner, name)
}

func mkRepo(id, owner, name string) model.Repo {
	return model.Repo{ID: model.RepoID(id), Owner: owner, Name: name}
}

func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func names(tracked []Tracked) []string {
	out := make([]string, len(tracked))
	for i, tr := range tracked {
		out[i] = tr.Repo.FullName()
	}
	return out
}

func TestResolveAffiliatedOnly(t *testing.T) {
	lister := &fakeLister{
		affiliated: []model.Repo{mkRepo("R1", "me", "mine"), mkRepo("R2", "org", "shared")},
	}
	cfg := loadConfig(t, "")

	tracked, err := Resolve(context.Background(), lister, cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(tracked) != 2 {
		t.Fatalf("tracked = %v, want 2 repos", names(tracked))
	}
	for _, tr := range tracked {
		if !tr.Affiliated {
			t.Errorf("%s should be marked affiliated", tr.Repo.FullName())
		}
	}
}

func TestResolveIncludesAndExcludes(t *testing.T) {
	lister := &fakeLister{
		affiliated: []model.Repo{mkRepo("R1", "me", "mine"), mkRepo("R2", "me", "noisy")},
		byOwner: map[string][]model.Repo{
			"vendor": {mkRepo("R3", "vendor", "lib"), mkRepo("R4", "vendor", "junk")},
			"friend": {mkRepo("R5", "friend", "project")},
		},
	}
	cfg := loadConfig(t, `
repos:
  include:
    - vendor/*
    - friend/project
  exclude:
    - me/noisy
    - vendor/junk
`)

	tracked, err := Resolve(context.Background(), lister, cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got := names(tracked)
	want := []string{"me/mine", "vendor/lib", "friend/project"}
	if len(got) != len(want) {
		t.Fatalf("tracked = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tracked[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	for _, tr := range tracked {
		if tr.Repo.Owner != "me" && tr.Affiliated {
			t.Errorf("%s entered via include but is marked affiliated", tr.Repo.FullName())
		}
	}
}

func TestResolvePolicyKeysImplicitlyInclude(t *testing.T) {
	lister := &fakeLister{
		byOwner: map[string][]model.Repo{
			"friend": {mkRepo("R1", "friend", "project")},
		},
	}
	cfg := loadConfig(t, `
repos:
  affiliations: []
activity:
  repo:
    "friend/project":
      stars: false
`)

	tracked, err := Resolve(context.Background(), lister, cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(tracked) != 1 || tracked[0].Repo.FullName() != "friend/project" {
		t.Fatalf("tracked = %v, want just friend/project", names(tracked))
	}
}

func TestResolveDedupByID(t *testing.T) {
	// The same repository is affiliated and explicitly included; the
	// affiliated path resolves first and keeps the flag.
	shared := mkRepo("R1", "org", "shared")
	lister := &fakeLister{
		affiliated: []model.Repo{shared},
		byOwner:    map[string][]model.Repo{"org": {shared}},
	}
	cfg := loadConfig(t, "repos:\n  include:\n    - org/shared\n")

	tracked, err := Resolve(context.Background(), lister, cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(tracked) != 1 {
		t.Fatalf("tracked = %v, want single entry", names(tracked))
	}
	if !tracked[0].Affiliated {
		t.Error("duplicate resolution should keep the affiliated flag from the first path")
	}
}

func TestResolveMissingIncludesAreWarnings(t *testing.T) {
	lister := &fakeLister{
		byOwner: map[string][]model.Repo{},
	}
	cfg := loadConfig(t, `
repos:
  affiliations: []
  include:
    - ghost-owner/*
    - ghost-owner/ghost-repo
`)

	tracked, err := Resolve(context.Background(), lister, cfg)
	if err != nil {
		t.Fatalf("missing includes should not fail the run: %v", err)
	}
	if len(tracked) != 0 {
		t.Errorf("tracked = %v, want empty", names(tracked))
	}
}

func TestResolveListFailureAborts(t *testing.T) {
	lister := &fakeLister{failWith: errors.New("boom")}
	cfg := loadConfig(t, "")

	if _, err := Resolve(context.Background(), lister, cfg); err == nil {
		t.Fatal("a failed affiliated listing should abort resolution")
	}
}
