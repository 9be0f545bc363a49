package api

import (
	"context"
	"net/http"
)

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var out TokenPair
	err := c.doJSON(ctx, request{op: "login", method: http.MethodPost, path: "/auth/login", public: true},
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates a refresh token into a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var out TokenPair
	err := c.doJSON(ctx, request{op: "refresh", method: http.MethodPost, path: "/auth/refresh", public: true},
		map[string]string{"refresh_token": refreshToken}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the refresh token on the server.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.doJSON(ctx, request{op: "logout", method: http.MethodPost, path: "/auth/logout", public: true},
		map[string]string{"refresh_token": refreshToken}, nil)
}
