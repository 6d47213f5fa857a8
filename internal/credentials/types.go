// Package credentials manages platform OAuth credentials: persistence,
// refresh-token grants, and the outbound HTTP wrapper that retries exactly
// once after a 401 by refreshing the stale token.
package credentials

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// Credential is one platform OAuth credential. One active credential exists
// per (owner, provider, platform account) tuple; only the refresh flow
// mutates it.
type Credential struct {
	ID                string                  `json:"id"`
	OwnerID           string                  `json:"owner_id"`
	Provider          deployment.PlatformType `json:"provider"`
	PlatformAccountID string                  `json:"platform_account_id,omitempty"`
	AccessToken       string                  `json:"access_token"`
	RefreshToken      string                  `json:"refresh_token,omitempty"`
	Scope             string                  `json:"scope,omitempty"`
	ExpiresAt         time.Time               `json:"expires_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// Token converts the credential to an oauth2 token.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
	}
}

// ExpiresWithin reports whether the credential expires inside the window.
// Credentials without a recorded expiry never match.
func (c Credential) ExpiresWithin(window time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(window).After(c.ExpiresAt)
}

// AuthError is returned when the platform's token endpoint rejects a
// refresh. Body carries the platform's raw error payload for diagnostics.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token refresh rejected: status %d: %s", e.StatusCode, e.Body)
}

// StatusError is returned for non-2xx responses from platform API calls.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform api error: status %d: %s", e.StatusCode, e.Body)
}

// TokenLookup resolves a credential from the access token it was last seen
// with. The refresh-on-401 path uses this to find the stale credential.
type TokenLookup interface {
	GetByAccessToken(ctx context.Context, accessToken string) (Credential, error)
}

// Saver persists a refreshed credential. Writes are last-writer-wins
// upserts keyed by (owner, provider, platform account).
type Saver interface {
	SaveRefreshed(ctx context.Context, cred Credential) (Credential, error)
}
