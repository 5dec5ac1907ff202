package client

import (
	"context"
	"errors"
	"net/http"

	"ripple/internal/models"
)

// Session is the resolved identity behind the client's token.
type Session struct {
	User    models.User
	IsGuest bool
}

// Session resolves the current session against the server. Without a
// token, or when the server no longer honors the token, it returns
// ErrAnonymous so callers can gate protected views behind a login
// redirect.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	if c.token == "" {
		return nil, ErrAnonymous
	}

	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return nil, ErrAnonymous
		}
		return nil, err
	}

	return &Session{
		User:    user,
		IsGuest: user.Kind == models.AccountKindGuest,
	}, nil
}
