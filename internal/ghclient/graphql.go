package ghclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spiffcs/reponews/internal/log"
	"github.com/spiffcs/reponews/internal/reposet"
)

// graphqlRequest is the POST payload for the GraphQL endpoint.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// graphql executes one query with variables, retrying transient failures,
// and decodes the "data" object into out.
func (c *Client) graphql(ctx context.Context, op, query string, vars map[string]any, out any) error {
	return c.retrier.Do(ctx, op, func() error {
		return c.graphqlOnce(ctx, op, query, vars, out)
	})
}

func (c *Client) graphqlOnce(ctx context.Context, op, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Trace("graphql request", "op", op, "variables", vars)
	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &FetchError{Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}

	var gr graphqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("invalid GraphQL response: %w", err)}
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
			if e.Type == "NOT_FOUND" {
				return fmt.Errorf("%w: %s", reposet.ErrNotFound, e.Message)
			}
		}
		// Query-level errors mean the request itself is wrong; retrying
		// the same query cannot help.
		return fmt.Errorf("%s: GraphQL error: %s", op, strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("unexpected GraphQL data shape: %w", err)}
	}
	return nil
}
