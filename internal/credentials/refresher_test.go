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

type memorySaver struct {
	mu    sync.Mutex
	saved []Credential
}

func (m *memorySaver) SaveRefreshed(_ context.Context, cred Credential) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, cred)
	return cred, nil
}

func TestRefresher_Refresh(t *testing.T) {
	var gotGrant, gotRefreshToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.FormValue("grant_type")
		gotRefreshToken = r.FormValue("refresh_token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600,"scope":"conversations.write","locationId":"loc-1"}`))
	}))
	defer server.Close()

	saver := &memorySaver{}
	refresher := NewRefresher(nil, server.Client(), server.URL, "client-id", "client-secret", saver)

	refreshed, err := refresher.Refresh(context.Background(), Credential{
		ID:           "cred-1",
		OwnerID:      "owner-1",
		Provider:     deployment.PlatformGoHighLevel,
		RefreshToken: "old-refresh",
	})
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", gotGrant)
	assert.Equal(t, "old-refresh", gotRefreshToken)
	assert.Equal(t, "new-access", refreshed.AccessToken)
	assert.Equal(t, "new-refresh", refreshed.RefreshToken)
	assert.Equal(t, "conversations.write", refreshed.Scope)
	assert.Equal(t, "loc-1", refreshed.PlatformAccountID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), refreshed.ExpiresAt, 5*time.Second)
	require.Len(t, saver.saved, 1, "refreshed credential must be persisted")
}

func TestRefresher_RejectionIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	refresher := NewRefresher(nil, server.Client(), server.URL, "id", "secret", &memorySaver{})
	_, err := refresher.Refresh(context.Background(), Credential{RefreshToken: "dead"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid_grant")
}

func TestRefresher_UnusableTokenNotPersisted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"","expires_in":3600}`))
	}))
	defer server.Close()

	saver := &memorySaver{}
	refresher := NewRefresher(nil, server.Client(), server.URL, "id", "secret", saver)
	_, err := refresher.Refresh(context.Background(), Credential{RefreshToken: "old-refresh"})

	require.Error(t, err)
	assert.Empty(t, saver.saved, "an unusable token must not overwrite the stored credential")
}

func TestRefresher_MissingRefreshToken(t *testing.T) {
	refresher := NewRefresher(nil, nil, "http://unused", "id", "secret", nil)
	_, err := refresher.Refresh(context.Background(), Credential{ID: "cred-1"})
	require.Error(t, err)
}
