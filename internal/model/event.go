package model

import (
	"fmt"
	"strings"
	"time"
)

// ReportItem is anything that can appear in the chronological report:
// fetched activity events and repository lifecycle notices.
type ReportItem interface {
	// Timestamp is the sort key for the final report.
	Timestamp() time.Time
	// Render returns the plain-text report entry for this item.
	Render() string
}

// ActivityEvent is a ReportItem produced from fetched repository activity.
type ActivityEvent interface {
	ReportItem
	// Mine reports whether the event was authored by the authenticated user.
	Mine() bool
}

// quote prefixes every line of s with "> ", the way a mail client quotes a
// reply. Used for release and repository descriptions in the report.
func quote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// IssueoidKind distinguishes the three event shapes that share the
// number/title/author form.
type IssueoidKind string

const (
	KindIssue       IssueoidKind = "issue"
	KindPullRequest IssueoidKind = "pr"
	KindDiscussion  IssueoidKind = "discussion"
)

// IssueoidEvent is a newly created issue, pull request, or discussion.
type IssueoidEvent struct {
	Kind   IssueoidKind
	At     time.Time
	Repo   Repo
	Number int
	Title  string
	Author User
	URL    string
}

func (e IssueoidEvent) Timestamp() time.Time { return e.At }

func (e IssueoidEvent) Mine() bool { return e.Author.IsViewer }

func (e IssueoidEvent) Render() string {
	return fmt.Sprintf("[%s] %s #%d: %s (@%s)\n<%s>",
		e.Repo.FullName(), strings.ToUpper(string(e.Kind)), e.Number, e.Title, e.Author.Login, e.URL)
}

// ReleaseEvent is a newly created release. ID is the release's node ID, used
// to suppress re-reporting a draft release once it is published.
type ReleaseEvent struct {
	At           time.Time
	Repo         Repo
	ID           string
	TagName      string
	Name         string
	Author       *User
	Description  string
	IsDraft      bool
	IsPrerelease bool
	URL          string
}

func (e ReleaseEvent) Timestamp() time.Time { return e.At }

func (e ReleaseEvent) Mine() bool { return e.Author != nil && e.Author.IsViewer }

func (e ReleaseEvent) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] RELEASE %s", e.Repo.FullName(), e.TagName)
	if e.IsDraft {
		sb.WriteString(" [draft]")
	}
	if e.IsPrerelease {
		sb.WriteString(" [prerelease]")
	}
	if e.Name != "" {
		sb.WriteString(": " + e.Name)
	}
	if e.Author != nil {
		fmt.Fprintf(&sb, " (@%s)", e.Author.Login)
	}
	fmt.Fprintf(&sb, "\n<%s>", e.URL)
	if e.Description != "" {
		sb.WriteString("\n" + quote(e.Description))
	}
	return sb.String()
}

// TagEvent is a newly pushed tag. Tagger is nil when the tag's author could
// not be resolved to a GitHub account.
type TagEvent struct {
	At     time.Time
	Repo   Repo
	Name   string
	Tagger *User
}

func (e TagEvent) Timestamp() time.Time { return e.At }

func (e TagEvent) Mine() bool { return e.Tagger != nil && e.Tagger.IsViewer }

func (e TagEvent) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] TAG %s", e.Repo.FullName(), e.Name)
	if e.Tagger != nil {
		fmt.Fprintf(&sb, " (@%s)", e.Tagger.Login)
	}
	fmt.Fprintf(&sb, "\n<%s/releases/tag/%s>", e.Repo.URL, e.Name)
	return sb.String()
}

// StarEvent is a new stargazer.
type StarEvent struct {
	At   time.Time
	Repo Repo
	User User
}

func (e StarEvent) Timestamp() time.Time { return e.At }

func (e StarEvent) Mine() bool { return e.User.IsViewer }

func (e StarEvent) Render() string {
	return fmt.Sprintf("★ @%s starred %s", e.User.Login, e.Repo.FullName())
}

// ForkEvent is a new fork. Fork is the forked repository; its owner is the
// actor. OwnerIsViewer is recorded at fetch time since Repo carries no
// viewer flag of its own.
type ForkEvent struct {
	At            time.Time
	Repo          Repo
	Fork          Repo
	OwnerIsViewer bool
}

func (e ForkEvent) Timestamp() time.Time { return e.At }

func (e ForkEvent) Mine() bool { return e.OwnerIsViewer }

func (e ForkEvent) Render() string {
	return fmt.Sprintf("@%s forked %s\n<%s>", e.Fork.Owner, e.Repo.FullName(), e.Fork.URL)
}

// TrackedNotice reports that a repository entered the tracked set.
type TrackedNotice struct {
	At   time.Time
	Repo Repo
}

func (n TrackedNotice) Timestamp() time.Time { return n.At }

func (n TrackedNotice) Render() string {
	s := fmt.Sprintf("Now tracking repository %s\n<%s>", n.Repo.FullName(), n.Repo.URL)
	if n.Repo.Description != "" {
		s += "\n" + quote(n.Repo.Description)
	}
	return s
}

// UntrackedNotice reports that a repository left the tracked set.
type UntrackedNotice struct {
	At   time.Time
	Repo Repo
}

func (n UntrackedNotice) Timestamp() time.Time { return n.At }

func (n UntrackedNotice) Render() string {
	return fmt.Sprintf("No longer tracking repository %s", n.Repo.FullName())
}

// RenamedNotice reports that a tracked repository changed owner and/or name
// since the previous run.
type RenamedNotice struct {
	At          time.Time
	OldFullName string
	Repo        Repo
}

func (n RenamedNotice) Timestamp() time.Time { return n.At }

func (n RenamedNotice) Render() string {
	return fmt.Sprintf("Repository renamed: %s → %s", n.OldFullName, n.Repo.FullName())
}
