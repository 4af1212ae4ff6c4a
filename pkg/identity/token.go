package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ClientCredentialsGrant requests a management API token using the
// client_credentials grant. Missing or rejected machine credentials are
// reported with KindMissingCredentials.
func (c *Client) ClientCredentialsGrant(ctx context.Context) (*TokenResponse, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, &Error{
			Code:    "missing_credentials",
			Message: "client_credentials grant requires a client id and secret",
			Kind:    KindMissingCredentials,
		}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/oauth/token", clientCredentialsRequest{
		GrantType:    "client_credentials",
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Audience:     c.cfg.Audience,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseTokenError(resp, bodyBytes)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &tokenResp, nil
}
