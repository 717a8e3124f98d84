package model

// ActivityType enumerates the kinds of repository activity reponews can
// track. The string values double as config keys and as the cutoff keys in
// the persisted state file.
type ActivityType string

const (
	ActivityIssue       ActivityType = "issues"
	ActivityPullRequest ActivityType = "pull_requests"
	ActivityDiscussion  ActivityType = "discussions"
	ActivityRelease     ActivityType = "releases"
	ActivityTag         ActivityType = "tags"
	ActivityStar        ActivityType = "stars"
	ActivityFork        ActivityType = "forks"
)

// ActivityTypes returns every activity type in a fixed order. The order is
// load-bearing: it determines the per-repository fetch and merge order, which
// keeps report output deterministic.
func ActivityTypes() []ActivityType {
	return []ActivityType{
		ActivityIssue,
		ActivityPullRequest,
		ActivityDiscussion,
		ActivityRelease,
		ActivityTag,
		ActivityStar,
		ActivityFork,
	}
}

// Policy is the fully-resolved tracking policy for one repository: which
// activity types are reported, plus the release-only modifiers (Prereleases,
// Drafts), the cross-type modifier (ReleasedTags), and the global modifier
// (MyActivity).
//
// Prereleases and Drafts have no effect unless Releases is true, and
// ReleasedTags has no effect unless both Releases and Tags are true.
type Policy struct {
	Issues       bool `json:"issues"`
	PullRequests bool `json:"pull_requests"`
	Discussions  bool `json:"discussions"`
	Releases     bool `json:"releases"`
	Prereleases  bool `json:"prereleases"`
	Drafts       bool `json:"drafts"`
	Tags         bool `json:"tags"`
	ReleasedTags bool `json:"released_tags"`
	Stars        bool `json:"stars"`
	Forks        bool `json:"forks"`
	MyActivity   bool `json:"my_activity"`
}

// DefaultPolicy returns the policy applied when no config layer defines a
// key: every activity type on, prereleases and drafts on, released-tag
// duplication and own-activity reporting off.
func DefaultPolicy() Policy {
	return Policy{
		Issues:       true,
		PullRequests: true,
		Discussions:  true,
		Releases:     true,
		Prereleases:  true,
		Drafts:       true,
		Tags:         true,
		ReleasedTags: false,
		Stars:        true,
		Forks:        true,
		MyActivity:   false,
	}
}

// Enabled reports whether the given activity type is tracked under p.
func (p Policy) Enabled(t ActivityType) bool {
	switch t {
	case ActivityIssue:
		return p.Issues
	case ActivityPullRequest:
		return p.PullRequests
	case ActivityDiscussion:
		return p.Discussions
	case ActivityRelease:
		return p.Releases
	case ActivityTag:
		return p.Tags
	case ActivityStar:
		return p.Stars
	case ActivityFork:
		return p.Forks
	}
	return false
}

// EnabledTypes returns the tracked activity types in canonical order.
func (p Policy) EnabledTypes() []ActivityType {
	var types []ActivityType
	for _, t := range ActivityTypes() {
		if p.Enabled(t) {
			types = append(types, t)
		}
	}
	return types
}
