package client

import (
	"context"
	"net/http"

	"github.com/imkrishn/notex/pkg/models"
)

// AuthResponse is returned by SignUp and SignIn.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type signUpRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type signInRequest struct {
	Email string `json:"email"`
}

// SignUp registers a new user account and stores the returned token on the
// client for subsequent requests.
func (c *Client) SignUp(ctx context.Context, email, name string) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signup", signUpRequest{Email: email, Name: name})
	if err != nil {
		return nil, err
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	c.SetAuthToken(result.Token)
	return &result, nil
}

// SignIn starts a session for an existing user and stores the returned token
// on the client for subsequent requests.
func (c *Client) SignIn(ctx context.Context, email string) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signin", signInRequest{Email: email})
	if err != nil {
		return nil, err
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	c.SetAuthToken(result.Token)
	return &result, nil
}

// SignOut ends the current session and clears the stored token.
func (c *Client) SignOut(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signout", nil)
	if err != nil {
		return err
	}
	if err := decodeResponse(resp, nil); err != nil {
		return err
	}

	c.SetAuthToken("")
	return nil
}

// GetCurrentUser returns the user behind the client's session token.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var result models.User
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
