package identity

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// GetUsersByEmail lists every account registered with the email address.
func (c *Client) GetUsersByEmail(ctx context.Context, email string) ([]User, error) {
	path := "/api/v2/users-by-email?email=" + url.QueryEscape(strings.TrimSpace(email))

	resp, err := c.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var users []User
	if err := decodeJSON(resp, &users, http.StatusOK); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates an account. The configured connection is used when the
// request does not name one.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Connection == "" {
		req.Connection = c.cfg.Connection
	}

	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/api/v2/users", req)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser patches an account. app_metadata keys are merged by the provider.
func (c *Client) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*User, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodPatch, "/api/v2/users/"+url.PathEscape(userID), req)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}
