package client

import (
	"context"
	"net/http"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/session"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

var _ session.Authenticator = (*Client)(nil)

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.Grant, error) {
	env, err := c.call(ctx, request{method: http.MethodPost, path: "/auth/login", body: req, anonymous: true})
	if err != nil {
		return nil, err
	}
	var grant models.Grant
	if err := env.DecodeData(&grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Register creates an account and returns the backend's confirmation text,
// which may be empty.
func (c *Client) Register(ctx context.Context, req models.Registration) (string, error) {
	env, err := c.call(ctx, request{method: http.MethodPost, path: "/auth/register", body: req, anonymous: true})
	if err != nil {
		return "", err
	}
	return env.Reason(), nil
}

// Validate returns the profile that accessToken belongs to.
func (c *Client) Validate(ctx context.Context, accessToken string) (*models.UserProfile, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/auth/validate", bearer: accessToken})
	if err != nil {
		return nil, err
	}
	var user models.UserProfile
	if err := env.DecodeData(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.Grant, error) {
	env, err := c.call(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/refresh",
		body:      models.RefreshRequest{RefreshToken: refreshToken},
		anonymous: true,
	})
	if err != nil {
		return nil, err
	}
	var grant models.Grant
	if err := env.DecodeData(&grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Users lists every account. Admin only.
func (c *Client) Users(ctx context.Context) ([]models.UserProfile, error) {
	return list[models.UserProfile](ctx, c, "/users", nil)
}
