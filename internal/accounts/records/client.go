// Package records is the GraphQL façade over the backend-as-a-service that
// holds User, Student and Coach records.
package records

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"
)

var ErrNotFound = errors.New("records: not found")

type Config struct {
	Endpoint string
	APIToken string
	Timeout  time.Duration // Optional: default 15s
}

// Client issues GraphQL operations against the record store.
type Client struct {
	gql   *graphql.Client
	token string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		gql:   graphql.NewClient(cfg.Endpoint, graphql.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})),
		token: cfg.APIToken,
	}
}

func (c *Client) run(ctx context.Context, query string, vars map[string]any, out any) error {
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.gql.Run(ctx, req, out)
}

// Ping runs a trivial query to verify the endpoint and token.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Typename string `json:"__typename"`
	}
	if err := c.run(ctx, `query Ping { __typename }`, nil, &out); err != nil {
		return fmt.Errorf("records: ping: %w", err)
	}
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
