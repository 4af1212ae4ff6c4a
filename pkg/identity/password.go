package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SendChangePasswordEmail asks the provider to email a password-set link to
// the address. It needs no management token. The provider's confirmation text
// is returned.
func (c *Client) SendChangePasswordEmail(ctx context.Context, email string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/dbconnections/change_password", changePasswordRequest{
		ClientID:   c.appClientID(),
		Email:      strings.TrimSpace(email),
		Connection: c.cfg.Connection,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", parseErrorResponse(resp, bodyBytes)
	}

	return strings.Trim(strings.TrimSpace(string(bodyBytes)), `"`), nil
}

// PasswordResetURL builds the hosted login URL from which a user can start a
// password reset. It performs no request.
func (c *Client) PasswordResetURL() string {
	params := url.Values{
		"client_id":     {c.appClientID()},
		"response_type": {"code"},
		"scope":         {"openid profile email"},
		"prompt":        {"login"},
	}
	if c.cfg.RedirectURI != "" {
		params.Set("redirect_uri", c.cfg.RedirectURI)
	}
	return c.url("/authorize") + "?" + params.Encode()
}
