package ghclient

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spiffcs/reponews/internal/log"
	"github.com/spiffcs/reponews/internal/model"
	"github.com/spiffcs/reponews/internal/reposet"
)

//go:embed queries/*.graphql
var queryFS embed.FS

func loadQuery(name string) string {
	b, err := queryFS.ReadFile("queries/" + name + ".graphql")
	if err != nil {
		panic(fmt.Sprintf("missing embedded query %q: %v", name, err))
	}
	return string(b)
}

// pageSize is the GraphQL page size for activity queries. Large enough that a
// daily run almost never pages, small enough to keep response payloads cheap.
const pageSize = 50

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// actorNode is the author/actor shape shared by every activity query.
type actorNode struct {
	Login    string `json:"login"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	IsViewer bool   `json:"isViewer"`
}

// user converts an actor to a model.User. Deleted accounts come back as a
// null author; GitHub attributes their content to @ghost and so do we.
func (a *actorNode) user() model.User {
	if a == nil {
		return model.User{Login: "ghost"}
	}
	return model.User{Login: a.Login, Name: a.Name, URL: a.URL, IsViewer: a.IsViewer}
}

func (a *actorNode) userPtr() *model.User {
	if a == nil {
		return nil
	}
	u := a.user()
	return &u
}

// connEnvelope is the "data" object of every activity query: a repository
// holding a single connection whose field name varies per activity type.
type connEnvelope struct {
	Repository map[string]json.RawMessage `json:"repository"`
}

func (e connEnvelope) connection(op, field string, out any) error {
	if e.Repository == nil {
		return fmt.Errorf("%w: %s", reposet.ErrNotFound, op)
	}
	if err := json.Unmarshal(e.Repository[field], out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("unexpected GraphQL data shape: %w", err)}
	}
	return nil
}

// ListEvents fetches all activity of one type in one repository that is
// strictly newer than after. It implements the source interface consumed by
// the diff engine. Events are returned oldest first.
func (c *Client) ListEvents(ctx context.Context, repo model.Repo, typ model.ActivityType, after time.Time) ([]model.ActivityEvent, error) {
	switch typ {
	case model.ActivityIssue:
		return c.listIssueoids(ctx, repo, model.KindIssue, "issues", "issues", after)
	case model.ActivityPullRequest:
		return c.listIssueoids(ctx, repo, model.KindPullRequest, "pull_requests", "pullRequests", after)
	case model.ActivityDiscussion:
		return c.listIssueoids(ctx, repo, model.KindDiscussion, "discussions", "discussions", after)
	case model.ActivityRelease:
		return c.listReleases(ctx, repo, after)
	case model.ActivityTag:
		return c.listTags(ctx, repo, after)
	case model.ActivityStar:
		return c.listStars(ctx, repo, after)
	case model.ActivityFork:
		return c.listForks(ctx, repo, after)
	}
	return nil, fmt.Errorf("unknown activity type %q", typ)
}

func (c *Client) vars(repo model.Repo, cursor *string) map[string]any {
	vars := map[string]any{"owner": repo.Owner, "name": repo.Name, "first": pageSize}
	if cursor != nil {
		vars["cursor"] = *cursor
	}
	return vars
}

type issueoidNode struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"createdAt"`
	Author    *actorNode `json:"author"`
}

// listIssueoids covers issues, pull requests, and discussions, which share
// the number/title/author shape and differ only in query and field name.
func (c *Client) listIssueoids(ctx context.Context, repo model.Repo, kind model.IssueoidKind, queryName, field string, after time.Time) ([]model.ActivityEvent, error) {
	query := loadQuery(queryName)
	op := fmt.Sprintf("list %s for %s", field, repo.FullName())
	var events []model.ActivityEvent
	var cursor *string
	for {
		var env connEnvelope
		if err := c.graphql(ctx, op, query, c.vars(repo, cursor), &env); err != nil {
			return nil, err
		}
		var conn struct {
			PageInfo pageInfo       `json:"pageInfo"`
			Nodes    []issueoidNode `json:"nodes"`
		}
		if err := env.connection(op, field, &conn); err != nil {
			return nil, err
		}
		reachedCutoff := false
		for _, n := range conn.Nodes {
			if !n.CreatedAt.After(after) {
				// Nodes are ordered newest first; everything past this
				// point has already been reported.
				reachedCutoff = true
				break
			}
			events = append(events, model.IssueoidEvent{
				Kind:   kind,
				At:     n.CreatedAt,
				Repo:   repo,
				Number: n.Number,
				Title:  n.Title,
				Author: n.Author.user(),
				URL:    n.URL,
			})
		}
		if reachedCutoff || !conn.PageInfo.HasNextPage {
			break
		}
		cursor = &conn.PageInfo.EndCursor
	}
	reverse(events)
	return events, nil
}

type releaseNode struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	TagName      string     `json:"tagName"`
	CreatedAt    time.Time  `json:"createdAt"`
	PublishedAt  *time.Time `json:"publishedAt"`
	IsDraft      bool       `json:"isDraft"`
	IsPrerelease bool       `json:"isPrerelease"`
	Description  string     `json:"description"`
	URL          string     `json:"url"`
	Author       *actorNode `json:"author"`
}

// timestamp is the moment a release became visible in its current form:
// publication time when published, creation time while still a draft. Using
// publishedAt lets a draft that was published since the last run show up
// again past the cutoff.
func (n releaseNode) timestamp() time.Time {
	if n.PublishedAt != nil {
		return *n.PublishedAt
	}
	return n.CreatedAt
}

func (c *Client) listReleases(ctx context.Context, repo model.Repo, after time.Time) ([]model.ActivityEvent, error) {
	query := loadQuery("releases")
	op := fmt.Sprintf("list releases for %s", repo.FullName())
	var events []model.ActivityEvent
	var cursor *string
	for {
		var env connEnvelope
		if err := c.graphql(ctx, op, query, c.vars(repo, cursor), &env); err != nil {
			return nil, err
		}
		var conn struct {
			PageInfo pageInfo      `json:"pageInfo"`
			Nodes    []releaseNode `json:"nodes"`
		}
		if err := env.connection(op, "releases", &conn); err != nil {
			return nil, err
		}
		// The connection is ordered by creation time but the event
		// timestamp may be the later publication time, so finish the
		// whole page before deciding whether to stop.
		reachedCutoff := false
		for _, n := range conn.Nodes {
			if !n.CreatedAt.After(after) {
				reachedCutoff = true
			}
			if !n.timestamp().After(after) {
				continue
			}
			events = append(events, model.ReleaseEvent{
				At:           n.timestamp(),
				Repo:         repo,
				ID:           n.ID,
				TagName:      n.TagName,
				Name:         n.Name,
				Author:       n.Author.userPtr(),
				Description:  n.Description,
				IsDraft:      n.IsDraft,
				IsPrerelease: n.IsPrerelease,
				URL:          n.URL,
			})
		}
		if reachedCutoff || !conn.PageInfo.HasNextPage {
			break
		}
		cursor = &conn.PageInfo.EndCursor
	}
	reverse(events)
	return events, nil
}

type tagNode struct {
	Name   string `json:"name"`
	Target struct {
		Typename      string     `json:"__typename"`
		CommittedDate *time.Time `json:"committedDate"`
		Author        *struct {
			User *actorNode `json:"user"`
		} `json:"author"`
		Tagger *struct {
			Date *time.Time `json:"date"`
			User *actorNode `json:"user"`
		} `json:"tagger"`
	} `json:"target"`
}

func (c *Client) listTags(ctx context.Context, repo model.Repo, after time.Time) ([]model.ActivityEvent, error) {
	query := loadQuery("tags")
	op := fmt.Sprintf("list tags for %s", repo.FullName())
	var events []model.ActivityEvent
	var cursor *string
	for {
		var env connEnvelope
		if err := c.graphql(ctx, op, query, c.vars(repo, cursor), &env); err != nil {
			return nil, err
		}
		var conn struct {
			PageInfo pageInfo  `json:"pageInfo"`
			Nodes    []tagNode `json:"nodes"`
		}
		if err := env.connection(op, "refs", &conn); err != nil {
			return nil, err
		}
		// Lightweight tags carry the commit date, annotated tags the
		// tagger date; the listing order is by commit date, which can
		// disagree with the tagger date, so finish the whole page.
		sawNewer := false
		for _, n := range conn.Nodes {
			var at time.Time
			var tagger *model.User
			switch {
			case n.Target.Tagger != nil && n.Target.Tagger.Date != nil:
				at = *n.Target.Tagger.Date
				tagger = n.Target.Tagger.User.userPtr()
			case n.Target.CommittedDate != nil:
				at = *n.Target.CommittedDate
				if n.Target.Author != nil {
					tagger = n.Target.Author.User.userPtr()
				}
			default:
				log.Warn("skipping tag without a usable timestamp",
					"repo", repo.FullName(), "tag", n.Name, "target", n.Target.Typename)
				continue
			}
			if !at.After(after) {
				continue
			}
			sawNewer = true
			events = append(events, model.TagEvent{
				At:     at,
				Repo:   repo,
				Name:   n.Name,
				Tagger: tagger,
			})
		}
		if !sawNewer || !conn.PageInfo.HasNextPage {
			break
		}
		cursor = &conn.PageInfo.EndCursor
	}
	reverse(events)
	return events, nil
}

type starEdge struct {
	StarredAt time.Time  `json:"starredAt"`
	Node      *actorNode `json:"node"`
}

func (c *Client) listStars(ctx context.Context, repo model.Repo, after time.Time) ([]model.ActivityEvent, error) {
	query := loadQuery("stars")
	op := fmt.Sprintf("list stargazers for %s", repo.FullName())
	var events []model.ActivityEvent
	var cursor *string
	for {
		var env connEnvelope
		if err := c.graphql(ctx, op, query, c.vars(repo, cursor), &env); err != nil {
			return nil, err
		}
		var conn struct {
			PageInfo pageInfo   `json:"pageInfo"`
			Edges    []starEdge `json:"edges"`
		}
		if err := env.connection(op, "stargazers", &conn); err != nil {
			return nil, err
		}
		reachedCutoff := false
		for _, e := range conn.Edges {
			if !e.StarredAt.After(after) {
				reachedCutoff = true
				break
			}
			events = append(events, model.StarEvent{
				At:   e.StarredAt,
				Repo: repo,
				User: e.Node.user(),
			})
		}
		if reachedCutoff || !conn.PageInfo.HasNextPage {
			break
		}
		cursor = &conn.PageInfo.EndCursor
	}
	reverse(events)
	return events, nil
}

type forkNode struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	Owner       struct {
		Login    string `json:"login"`
		URL      string `json:"url"`
		IsViewer bool   `json:"isViewer"`
	} `json:"owner"`
}

func (c *Client) listForks(ctx context.Context, repo model.Repo, after time.Time) ([]model.ActivityEvent, error) {
	query := loadQuery("forks")
	op := fmt.Sprintf("list forks for %s", repo.FullName())
	var events []model.ActivityEvent
	var cursor *string
	for {
		var env connEnvelope
		if err := c.graphql(ctx, op, query, c.vars(repo, cursor), &env); err != nil {
			return nil, err
		}
		var conn struct {
			PageInfo pageInfo   `json:"pageInfo"`
			Nodes    []forkNode `json:"nodes"`
		}
		if err := env.connection(op, "forks", &conn); err != nil {
			return nil, err
		}
		reachedCutoff := false
		for _, n := range conn.Nodes {
			if !n.CreatedAt.After(after) {
				reachedCutoff = true
				break
			}
			events = append(events, model.ForkEvent{
				At:   n.CreatedAt,
				Repo: repo,
				Fork: model.Repo{
					ID:          model.RepoID(n.ID),
					Owner:       n.Owner.Login,
					Name:        n.Name,
					URL:         n.URL,
					Description: n.Description,
				},
				OwnerIsViewer: n.Owner.IsViewer,
			})
		}
		if reachedCutoff || !conn.PageInfo.HasNextPage {
			break
		}
		cursor = &conn.PageInfo.EndCursor
	}
	reverse(events)
	return events, nil
}

// reverse flips newest-first fetch order into the oldest-first order the
// rest of the pipeline expects.
func reverse(events []model.ActivityEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
