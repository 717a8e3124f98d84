package ghclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spiffcs/reponews/internal/model"
	"github.com/spiffcs/reponews/internal/reposet"
)

var testRepo = model.Repo{ID: "R1", Owner: "octocat", Name: "hello-world", URL: "https://github.com/octocat/hello-world"}

// newTestClient points a client at a fake GraphQL endpoint with fast retries.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(context.Background(), server.URL, "test-token")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.retrier = testRetrier(3)
	return c
}

func decodeVars(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("bad request body: %v", err)
	}
	return req.Variables
}

func TestListEventsIssues(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		vars := decodeVars(t, r)
		if vars["owner"] != "octocat" || vars["name"] != "hello-world" {
			t.Errorf("unexpected variables: %v", vars)
		}
		fmt.Fprint(w, `{"data": {"repository": {"issues": {
			"pageInfo": {"hasNextPage": true, "endCursor": "c1"},
			"nodes": [
				{"number": 5, "title": "Newest", "url": "https://example.com/5",
				 "createdAt": "2026-02-03T00:00:00Z",
				 "author": {"login": "alice", "url": "https://github.com/alice", "isViewer": true}},
				{"number": 4, "title": "Newer", "url": "https://example.com/4",
				 "createdAt": "2026-02-02T00:00:00Z", "author": null},
				{"number": 3, "title": "Old", "url": "https://example.com/3",
				 "createdAt": "2026-01-01T00:00:00Z",
				 "author": {"login": "bob"}}
			]}}}}`)
	})

	events, err := client.ListEvents(context.Background(), testRepo, model.ActivityIssue, cutoff)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (cutoff reached, no second page despite hasNextPage)", len(events))
	}
	first := events[0].(model.IssueoidEvent)
	if first.Number != 4 {
		t.Errorf("events must be oldest first, got #%d", first.Number)
	}
	if first.Author.Login != "ghost" {
		t.Errorf("null author = %q, want ghost", first.Author.Login)
	}
	second := events[1].(model.IssueoidEvent)
	if !second.Mine() {
		t.Error("isViewer author should mark the event as mine")
	}
	if second.Kind != model.KindIssue {
		t.Errorf("Kind = %q", second.Kind)
	}
}

func TestListEventsPaginates(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		vars := decodeVars(t, r)
		if _, ok := vars["cursor"]; !ok {
			fmt.Fprint(w, `{"data": {"repository": {"stargazers": {
				"pageInfo": {"hasNextPage": true, "endCursor": "c1"},
				"edges": [{"starredAt": "2026-02-05T00:00:00Z", "node": {"login": "carol"}}]}}}}`)
			return
		}
		if vars["cursor"] != "c1" {
			t.Errorf("cursor = %v, want c1", vars["cursor"])
		}
		fmt.Fprint(w, `{"data": {"repository": {"stargazers": {
			"pageInfo": {"hasNextPage": false, "endCursor": ""},
			"edges": [{"starredAt": "2026-02-03T00:00:00Z", "node": {"login": "dave"}}]}}}}`)
	})

	events, err := client.ListEvents(context.Background(), testRepo, model.ActivityStar, cutoff)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want both pages", len(events))
	}
	if events[0].(model.StarEvent).User.Login != "dave" {
		t.Error("events must be oldest first across pages")
	}
}

func TestListEventsReleaseTimestamps(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// An old draft published after the cutoff, and a draft created
		// after the cutoff with no publication.
		fmt.Fprint(w, `{"data": {"repository": {"releases": {
			"pageInfo": {"hasNextPage": false, "endCursor": ""},
			"nodes": [
				{"id": "REL_2", "tagName": "v2.0.0", "name": "Two",
				 "createdAt": "2026-02-04T00:00:00Z", "publishedAt": null,
				 "isDraft": true, "isPrerelease": false,
				 "description": "", "url": "https://example.com/v2"},
				{"id": "REL_1", "tagName": "v1.0.0", "name": "One",
				 "createdAt": "2026-01-10T00:00:00Z", "publishedAt": "2026-02-05T00:00:00Z",
				 "isDraft": false, "isPrerelease": false,
				 "description": "notes", "url": "https://example.com/v1"}
			]}}}}`)
	})

	events, err := client.ListEvents(context.Background(), testRepo, model.ActivityRelease, cutoff)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2: publication after the cutoff counts even for an old draft", len(events))
	}
	first := events[0].(model.ReleaseEvent)
	if first.ID != "REL_1" {
		t.Errorf("events[0] = %+v, want the earlier-created release", first)
	}
	if !first.At.Equal(time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("published release timestamp = %v, want publishedAt", first.At)
	}
	second := events[1].(model.ReleaseEvent)
	if second.ID != "REL_2" || !second.IsDraft {
		t.Errorf("events[1] = %+v, want the unpublished draft", second)
	}
	if !second.At.Equal(time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("draft timestamp = %v, want createdAt", second.At)
	}
}

func TestListEventsTags(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"repository": {"refs": {
			"pageInfo": {"hasNextPage": false, "endCursor": ""},
			"nodes": [
				{"name": "v2.0.0", "target": {"__typename": "Tag",
				 "tagger": {"date": "2026-02-03T00:00:00Z", "user": {"login": "alice"}}}},
				{"name": "v1.9.0", "target": {"__typename": "Commit",
				 "committedDate": "2026-02-02T00:00:00Z",
				 "author": {"user": {"login": "bob"}}}},
				{"name": "weird", "target": {"__typename": "Blob"}}
			]}}}}`)
	})

	events, err := client.ListEvents(context.Background(), testRepo, model.ActivityTag, cutoff)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (the dateless target is skipped)", len(events))
	}
	lightweight := events[0].(model.TagEvent)
	if lightweight.Name != "v1.9.0" || lightweight.Tagger == nil || lightweight.Tagger.Login != "bob" {
		t.Errorf("lightweight tag = %+v", lightweight)
	}
	annotated := events[1].(model.TagEvent)
	if annotated.Name != "v2.0.0" || annotated.Tagger == nil || annotated.Tagger.Login != "alice" {
		t.Errorf("annotated tag = %+v", annotated)
	}
}

func TestListEventsForks(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"repository": {"forks": {
			"pageInfo": {"hasNextPage": false, "endCursor": ""},
			"nodes": [
				{"id": "F1", "name": "hello-world", "url": "https://github.com/me/hello-world",
				 "description": "", "createdAt": "2026-02-02T00:00:00Z",
				 "owner": {"login": "me", "isViewer": true}}
			]}}}}`)
	})

	events, err := client.ListEvents(context.Background(), testRepo, model.ActivityFork, cutoff)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	fork := events[0].(model.ForkEvent)
	if fork.Fork.Owner != "me" || fork.Fork.ID != "F1" {
		t.Errorf("fork = %+v", fork.Fork)
	}
	if !fork.Mine() {
		t.Error("a fork owned by the viewer is the viewer's own activity")
	}
}

func TestListEventsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": null, "errors": [
			{"type": "NOT_FOUND", "message": "Could not resolve to a Repository"}]}`)
	})

	_, err := client.ListEvents(context.Background(), testRepo, model.ActivityIssue, time.Time{})
	if !errors.Is(err, reposet.ErrNotFound) {
		t.Fatalf("err = %v, want reposet.ErrNotFound", err)
	}
}

func TestGraphqlRetriesServerErrors(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data": {"repository": {"issues": {
			"pageInfo": {"hasNextPage": false, "endCursor": ""}, "nodes": []}}}}`)
	})

	events, err := client.ListEvents(context.Background(), testRepo, model.ActivityIssue, time.Time{})
	if err != nil {
		t.Fatalf("ListEvents should succeed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
}

func TestRateLimitSurfacesAsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	})
	client.retrier = testRetrier(1)

	_, err := client.ListEvents(context.Background(), testRepo, model.ActivityIssue, time.Time{})
	if err == nil {
		t.Fatal("expected a rate limit error")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if !IsTransient(err) {
		t.Error("rate limiting must classify as transient")
	}
}
