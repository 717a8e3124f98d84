package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spiffcs/reponews/internal/model"
)

func TestLoadMissingFile(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), "nope", "state.json"))
	if err != nil {
		t.Fatalf("a missing state file is a first run, not an error: %v", err)
	}
	if len(st.Repos) != 0 {
		t.Errorf("missing file should load as empty state, got %d repos", len(st.Repos))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"R1": {"owner": "octo`},
		{"wrong shape", `[1, 2, 3]`},
		{"not json", "hello\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Load = %v, want ErrCorrupt: a corrupt file must never pass as empty", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.json")
	cutoff := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	st := New()
	st.Repos["R1"] = &RepoState{
		Owner: "octocat",
		Name:  "hello-world",
		Cutoffs: map[model.ActivityType]time.Time{
			model.ActivityIssue:   cutoff,
			model.ActivityRelease: cutoff.Add(time.Hour),
		},
		SeenDraftReleases: []string{"REL_1", "REL_2"},
	}

	if err := Save(path, st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rs := got.Repos["R1"]
	if rs == nil {
		t.Fatal("repo R1 missing after round trip")
	}
	if rs.FullName() != "octocat/hello-world" {
		t.Errorf("FullName = %q", rs.FullName())
	}
	if !rs.Cutoffs[model.ActivityIssue].Equal(cutoff) {
		t.Errorf("issues cutoff = %v, want %v", rs.Cutoffs[model.ActivityIssue], cutoff)
	}
	if !rs.Cutoffs[model.ActivityRelease].Equal(cutoff.Add(time.Hour)) {
		t.Errorf("releases cutoff = %v", rs.Cutoffs[model.ActivityRelease])
	}
	if len(rs.SeenDraftReleases) != 2 || rs.SeenDraftReleases[0] != "REL_1" {
		t.Errorf("SeenDraftReleases = %v", rs.SeenDraftReleases)
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	first := New()
	first.Repos["R1"] = &RepoState{Owner: "a", Name: "b", Cutoffs: map[model.ActivityType]time.Time{}}
	if err := Save(path, first); err != nil {
		t.Fatal(err)
	}

	second := New()
	second.Repos["R2"] = &RepoState{Owner: "c", Name: "d", Cutoffs: map[model.ActivityType]time.Time{}}
	if err := Save(path, second); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Repos["R1"]; ok {
		t.Error("old state survived the overwrite")
	}
	if _, ok := got.Repos["R2"]; !ok {
		t.Error("new state missing after overwrite")
	}

	// No temp files should be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the state file", len(entries))
	}
}
