package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// refreshResponse is the token endpoint's success payload.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	// LocationID is GoHighLevel's sub-account identifier; other providers
	// omit it.
	LocationID string `json:"locationId"`
}

// Refresher exchanges refresh tokens at one provider's token endpoint and
// persists the result.
type Refresher struct {
	logger       *slog.Logger
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	store        Saver
}

// NewRefresher creates a Refresher for one provider.
func NewRefresher(log *slog.Logger, httpClient *http.Client, tokenURL, clientID, clientSecret string, store Saver) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Refresher{
		logger:       log.With(slog.String("component", "token_refresher")),
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		store:        store,
	}
}

// Refresh performs a refresh_token grant and persists the new credential.
// Concurrent refreshes of the same credential are tolerated: both may
// succeed at the provider, and the last write wins in the store.
func (r *Refresher) Refresh(ctx context.Context, cred Credential) (Credential, error) {
	if strings.TrimSpace(cred.RefreshToken) == "" {
		return Credential{}, fmt.Errorf("credential %s has no refresh token", cred.ID)
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {r.clientID},
		"client_secret": {r.clientSecret},
		"refresh_token": {cred.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("token endpoint: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Credential{}, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload refreshResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Credential{}, fmt.Errorf("decode token response: %w", err)
	}
	tok := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    "Bearer",
	}
	if payload.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	if !tok.Valid() {
		return Credential{}, fmt.Errorf("token response carries no usable access_token")
	}

	refreshed := cred
	refreshed.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	if payload.Scope != "" {
		refreshed.Scope = payload.Scope
	}
	if !tok.Expiry.IsZero() {
		refreshed.ExpiresAt = tok.Expiry
	}
	if refreshed.PlatformAccountID == "" && payload.LocationID != "" {
		refreshed.PlatformAccountID = payload.LocationID
	}

	if r.store != nil {
		saved, err := r.store.SaveRefreshed(ctx, refreshed)
		if err != nil {
			return Credential{}, fmt.Errorf("persist refreshed credential: %w", err)
		}
		refreshed = saved
	}
	r.logger.Info("credential refreshed",
		slog.String("provider", refreshed.Provider.String()),
		slog.String("owner_id", refreshed.OwnerID),
	)
	return refreshed, nil
}
