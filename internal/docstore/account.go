package docstore

import (
	"context"
	"net/http"
)

// Session describes an auth provider session.
type Session struct {
	ID       string `json:"$id"`
	UserID   string `json:"userId"`
	Secret   string `json:"secret"`
	Expire   string `json:"expire"`
	Provider string `json:"provider"`
}

// CreateEmailSession logs in with an email/password credential pair. On
// success the returned session secret is installed on the client.
func (c *Client) CreateEmailSession(ctx context.Context, email, password string) (*Session, error) {
	out := &Session{}
	body := map[string]any{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/account/sessions/email", nil, body, out); err != nil {
		return nil, err
	}
	c.SetSession(out.Secret)
	return out, nil
}

// CreateTokenSession exchanges a userId plus opaque token for a session. On
// success the returned session secret is installed on the client.
func (c *Client) CreateTokenSession(ctx context.Context, userID, secret string) (*Session, error) {
	out := &Session{}
	body := map[string]any{"userId": userID, "secret": secret}
	if err := c.do(ctx, http.MethodPost, "/account/sessions/token", nil, body, out); err != nil {
		return nil, err
	}
	c.SetSession(out.Secret)
	return out, nil
}

// CurrentSession looks up the session behind the installed secret. It fails
// with an AuthError when no valid session exists.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	out := &Session{}
	if err := c.do(ctx, http.MethodGet, "/account/sessions/current", nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCurrentSession deletes the remote session. The local secret is left
// to the caller; the session guard clears it even when this call fails.
func (c *Client) DeleteCurrentSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/account/sessions/current", nil, nil, nil)
}
