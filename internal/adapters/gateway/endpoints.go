package gateway

import (
	"context"
	"net/http"
	"net/url"
)

func sessionPath(session, op string) string {
	return "/v1/sessions/" + url.PathEscape(session) + "/" + op
}

// Connect asks the gateway to load and connect the session stored at filePath
func (c *Client) Connect(ctx context.Context, session, filePath string) error {
	return c.do(ctx, session, http.MethodPost, sessionPath(session, "connect"), connectRequest{FilePath: filePath}, nil)
}

// IsAuthorized reports whether the gateway still holds a logged in session
func (c *Client) IsAuthorized(ctx context.Context, session string) (bool, error) {
	var out authorizedResponse
	if err := c.do(ctx, session, http.MethodGet, sessionPath(session, "authorized"), nil, &out); err != nil {
		return false, err
	}
	return out.Authorized, nil
}

// Disconnect is best effort; failures are logged and dropped
func (c *Client) Disconnect(ctx context.Context, session string) {
	if err := c.do(ctx, session, http.MethodPost, sessionPath(session, "disconnect"), nil, nil); err != nil {
		c.log.Warn().Err(err).Str("session", session).Msg("gateway disconnect failed")
	}
}

// ImportContacts imports contacts through session and returns the ones that
// matched a registered user. The imported contacts are removed again
func (c *Client) ImportContacts(ctx context.Context, session string, contacts []Contact, withPresence bool) ([]Imported, error) {
	var out importResponse
	in := importRequest{Contacts: contacts, DeleteAfter: true, WithPresence: withPresence}
	if err := c.do(ctx, session, http.MethodPost, sessionPath(session, "contacts/import"), in, &out); err != nil {
		return nil, err
	}
	return out.Imported, nil
}
