// Package state persists the per-repository tracking state between runs:
// activity cutoffs, the seen-draft-release set, and the last known
// owner/name used for rename detection.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spiffcs/reponews/internal/log"
	"github.com/spiffcs/reponews/internal/model"
)

// ErrCorrupt marks an unreadable or unparseable state file. A corrupt file
// must never be treated as "no prior state": that would replay the entire
// visible history of every tracked repository.
var ErrCorrupt = errors.New("state file corrupt")

// RepoState is the durable record for one tracked repository.
type RepoState struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	// Cutoffs maps each tracked activity type to the timestamp boundary:
	// only events strictly later qualify as new. A missing key means the
	// type has never been tracked for this repo.
	Cutoffs map[model.ActivityType]time.Time `json:"cutoffs"`
	// SeenDraftReleases holds the node IDs of releases first observed as
	// drafts, so their eventual publication is not re-reported.
	SeenDraftReleases []string `json:"seenDraftReleaseIds,omitempty"`
}

// FullName returns the stored "owner/name" form, used for rename detection.
func (rs *RepoState) FullName() string { return rs.Owner + "/" + rs.Name }

// State is the whole tracking state, keyed by stable repository ID.
type State struct {
	Repos map[model.RepoID]*RepoState
}

// New returns an empty state.
func New() *State {
	return &State{Repos: map[model.RepoID]*RepoState{}}
}

// Load reads the state file at path. A missing file is an empty state
// (first run); anything else unreadable or unparseable is ErrCorrupt.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("state file not found; treating as empty", "path", path)
			return New(), nil
		}
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrCorrupt, path, err)
	}
	repos := map[model.RepoID]*RepoState{}
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrCorrupt, path, err)
	}
	return &State{Repos: repos}, nil
}

// Save writes the state atomically: marshal, write to a temp file in the
// same directory, then rename over the old file. A crash mid-write leaves
// the previous valid state intact.
func Save(path string, st *State) error {
	data, err := json.MarshalIndent(st.Repos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
