package odoo

import (
	"context"
	"log/slog"

	"github.com/splitsync/splitsync/internal/remote"
)

// ensureSession authenticates once on first use. Subsequent calls reuse the
// cached session id until the server reports expiry.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	have := c.sessionID != ""
	c.mu.Unlock()
	if have {
		return nil
	}
	return c.authenticate(ctx)
}

// authenticate establishes a fresh session and caches its id.
func (c *Client) authenticate(ctx context.Context) error {
	params := map[string]any{
		"db":       c.cfg.Database,
		"login":    c.cfg.Username,
		"password": c.cfg.Password,
	}

	var result struct {
		SessionID string `json:"session_id"`
		UID       any    `json:"uid"` // integer on success, false on bad credentials
	}

	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()

	if err := c.call(ctx, "/web/session/authenticate", params, &result); err != nil {
		return annotate(err, "authenticate")
	}

	uid, ok := result.UID.(float64)
	if !ok || uid == 0 {
		return &remote.ValidationError{Op: "authenticate", Message: "invalid credentials"}
	}

	c.mu.Lock()
	c.sessionID = result.SessionID
	c.mu.Unlock()

	slog.Info("Remote session established", "database", c.cfg.Database, "uid", int64(uid))
	return nil
}
