// Package ghclient talks to GitHub: REST (google/go-github) for repository
// directory lookups and GraphQL for activity fetching. It implements the
// reposet.Lister and diff.Source interfaces consumed by the core.
package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/spiffcs/reponews/internal/log"
	"github.com/spiffcs/reponews/internal/model"
	"github.com/spiffcs/reponews/internal/reposet"
)

// Client wraps the GitHub API.
type Client struct {
	rest *gh.Client
	http *http.Client
	// token is intentionally unexported. NEVER add String(), MarshalJSON(),
	// or any method that could expose this value in logs or serialized output.
	token      string
	graphqlURL string
	retrier    Retrier

	// viewer is the authenticated user's login, fetched once and used to
	// build absolute API URLs and flag the user's own activity.
	viewer string
}

// NewClient creates a client for the given API root (normally
// https://api.github.com) using a personal access token.
func NewClient(ctx context.Context, apiURL, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token not provided")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Transport = &rateLimitTransport{base: tc.Transport}

	rest := gh.NewClient(tc)
	apiURL = strings.TrimRight(apiURL, "/")
	if apiURL != "https://api.github.com" {
		var err error
		rest, err = rest.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", apiURL, err)
		}
	}

	return &Client{
		rest:       rest,
		http:       tc,
		token:      token,
		graphqlURL: apiURL + "/graphql",
		retrier:    DefaultRetrier(),
	}, nil
}

// rateLimitTransport surfaces GitHub's rate-limit responses as
// ErrRateLimited so the retry and skip machinery can treat them as
// transient.
type rateLimitTransport struct {
	base http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
		_ = resp.Body.Close()
		return nil, ErrRateLimited
	}
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining == "1" || remaining == "10" {
		log.Debug("rate limit low", "remaining", remaining)
	}
	return resp, err
}

// AuthenticatedUser returns the authenticated user's login, caching it for
// viewer checks.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	if c.viewer != "" {
		return c.viewer, nil
	}
	var user *gh.User
	err := c.retrier.Do(ctx, "get authenticated user", func() error {
		var resp *gh.Response
		var err error
		user, resp, err = c.rest.Users.Get(ctx, "")
		return wrapREST("get authenticated user", resp, err)
	})
	if err != nil {
		return "", err
	}
	c.viewer = user.GetLogin()
	return c.viewer, nil
}

// RateLimits returns the current API quota.
func (c *Client) RateLimits(ctx context.Context) (*gh.RateLimits, error) {
	var limits *gh.RateLimits
	err := c.retrier.Do(ctx, "get rate limits", func() error {
		var resp *gh.Response
		var err error
		limits, resp, err = c.rest.RateLimit.Get(ctx)
		return wrapREST("get rate limits", resp, err)
	})
	if err != nil {
		return nil, err
	}
	return limits, nil
}

// AffiliatedRepos lists the repositories connected to the authenticated
// user through the given affiliation kinds.
func (c *Client) AffiliatedRepos(ctx context.Context, affiliations []model.Affiliation) ([]model.Repo, error) {
	tokens := make([]string, len(affiliations))
	for i, a := range affiliations {
		tokens[i] = restAffiliation(a)
	}
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Affiliation: strings.Join(tokens, ","),
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var out []model.Repo
	for {
		var repos []*gh.Repository
		var resp *gh.Response
		err := c.retrier.Do(ctx, "list affiliated repos", func() error {
			var err error
			repos, resp, err = c.rest.Repositories.ListByAuthenticatedUser(ctx, opts)
			return wrapREST("list affiliated repos", resp, err)
		})
		if err != nil {
			return nil, err
		}
		for _, r := range repos {
			out = append(out, restRepo(r))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// OwnerRepos lists all repositories visible under an owner (the
// directory-listing call behind "owner/*" patterns). A nonexistent owner
// wraps reposet.ErrNotFound.
func (c *Client) OwnerRepos(ctx context.Context, owner string) ([]model.Repo, error) {
	opts := &gh.RepositoryListByUserOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var out []model.Repo
	for {
		var repos []*gh.Repository
		var resp *gh.Response
		err := c.retrier.Do(ctx, "list owner repos", func() error {
			var err error
			repos, resp, err = c.rest.Repositories.ListByUser(ctx, owner, opts)
			return wrapREST("list owner repos", resp, err)
		})
		if err != nil {
			return nil, notFoundOr(err)
		}
		for _, r := range repos {
			out = append(out, restRepo(r))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// Repo fetches a single repository. A nonexistent repo wraps
// reposet.ErrNotFound.
func (c *Client) Repo(ctx context.Context, owner, name string) (model.Repo, error) {
	var repo *gh.Repository
	err := c.retrier.Do(ctx, "get repo", func() error {
		var resp *gh.Response
		var err error
		repo, resp, err = c.rest.Repositories.Get(ctx, owner, name)
		return wrapREST("get repo", resp, err)
	})
	if err != nil {
		return model.Repo{}, notFoundOr(err)
	}
	return restRepo(repo), nil
}

func restRepo(r *gh.Repository) model.Repo {
	return model.Repo{
		ID:          model.RepoID(r.GetNodeID()),
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		URL:         r.GetHTMLURL(),
		Description: r.GetDescription(),
	}
}

// restAffiliation maps our affiliation kinds to the REST API's tokens.
func restAffiliation(a model.Affiliation) string {
	switch a {
	case model.AffiliationOrgMember:
		return "organization_member"
	case model.AffiliationCollaborator:
		return "collaborator"
	default:
		return "owner"
	}
}

// wrapREST converts a go-github call result into a FetchError carrying the
// HTTP status, leaving rate-limit sentinels intact.
func wrapREST(op string, resp *gh.Response, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrRateLimited
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &FetchError{Op: op, StatusCode: status, Err: err}
}

// notFoundOr maps 404s to reposet.ErrNotFound so the resolver can warn and
// continue instead of aborting.
func notFoundOr(err error) error {
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", reposet.ErrNotFound, err)
	}
	return err
}
