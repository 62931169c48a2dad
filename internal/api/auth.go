package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/melissa98m/weeb-website-sub000/internal/models"
)

// ErrNotAuthorized is returned when the current user may not manage content.
var ErrNotAuthorized = errors.New("current user is not allowed to manage content")

// Login authenticates with username and password. The backend answers with a
// session cookie kept in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	reqBody := map[string]string{
		"username": username,
		"password": password,
	}

	respBody, err := c.Post(ctx, "/auth/login/", reqBody)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	// Django rotates the csrf token on login
	c.resetCSRF()

	if user, ok := decodeUser(respBody); ok {
		return user, nil
	}
	return c.Me(ctx)
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Post(ctx, "/auth/logout/", nil)
	c.resetCSRF()
	return err
}

// Me returns the currently authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	respBody, err := c.Get(ctx, "/me/", nil)
	if err != nil {
		return nil, err
	}
	user, ok := decodeUser(respBody)
	if !ok {
		return nil, errors.New("failed to unmarshal user: no username in response")
	}
	return user, nil
}

// RequireContentManager fetches the current user and refuses users that
// cannot manage back-office content.
func (c *Client) RequireContentManager(ctx context.Context) (*models.User, error) {
	user, err := c.Me(ctx)
	if err != nil {
		if IsForbidden(err) {
			return nil, fmt.Errorf("%w: not logged in", ErrNotAuthorized)
		}
		return nil, err
	}
	if !user.CanManageContent() {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, user.Username)
	}
	return user, nil
}

// decodeUser accepts either a bare user object or one wrapped in "user".
func decodeUser(body []byte) (*models.User, bool) {
	var user models.User
	if err := json.Unmarshal(body, &user); err == nil && user.Username != "" {
		return &user, true
	}
	var wrapped struct {
		User models.User `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.User.Username != "" {
		return &wrapped.User, true
	}
	return nil, false
}
