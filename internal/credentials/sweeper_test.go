package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

type memoryExpiringLister struct {
	creds []Credential
}

func (m *memoryExpiringLister) ListExpiring(_ context.Context, _ time.Duration) ([]Credential, error) {
	return m.creds, nil
}

func TestSweeper_RefreshesOnlyCredentialsInsideWindow(t *testing.T) {
	var mu sync.Mutex
	var refreshedTokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		refreshedTokens = append(refreshedTokens, r.FormValue("refresh_token"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"renewed","expires_in":3600}`))
	}))
	defer server.Close()

	refresher := NewRefresher(nil, server.Client(), server.URL, "id", "secret", &memorySaver{})
	lister := &memoryExpiringLister{creds: []Credential{
		{
			ID:           "near",
			Provider:     deployment.PlatformGoHighLevel,
			RefreshToken: "near-refresh",
			ExpiresAt:    time.Now().Add(5 * time.Minute),
		},
		{
			// Already renewed by another instance after the listing query.
			ID:           "far",
			Provider:     deployment.PlatformGoHighLevel,
			RefreshToken: "far-refresh",
			ExpiresAt:    time.Now().Add(24 * time.Hour),
		},
		{
			ID:           "no-refresher",
			Provider:     deployment.PlatformSlack,
			RefreshToken: "slack-refresh",
			ExpiresAt:    time.Now().Add(5 * time.Minute),
		},
	}}
	sweeper := NewSweeper(nil, lister, map[deployment.PlatformType]*Refresher{
		deployment.PlatformGoHighLevel: refresher,
	}, "@every 15m", 30*time.Minute)

	sweeper.sweep()

	assert.Equal(t, []string{"near-refresh"}, refreshedTokens)
}
