package credentials

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

type memoryLookup struct {
	byToken map[string]Credential
	calls   atomic.Int32
}

func (m *memoryLookup) GetByAccessToken(_ context.Context, accessToken string) (Credential, error) {
	m.calls.Add(1)
	cred, ok := m.byToken[accessToken]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return cred, nil
}

// newRefreshServer serves a token endpoint that always issues "fresh-token".
func newRefreshServer(t *testing.T, refreshCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-token","expires_in":3600}`))
	}))
}

func TestClient_RefreshesAndReplaysOnceOn401(t *testing.T) {
	var apiCalls, refreshCalls atomic.Int32

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"message":"hi"}`, string(body), "replay must resend the original body")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer api.Close()

	tokenEndpoint := newRefreshServer(t, &refreshCalls)
	defer tokenEndpoint.Close()

	lookup := &memoryLookup{byToken: map[string]Credential{
		"stale-token": {
			ID:           "cred-1",
			OwnerID:      "owner-1",
			Provider:     deployment.PlatformSlack,
			AccessToken:  "stale-token",
			RefreshToken: "refresh-1",
		},
	}}
	refresher := NewRefresher(nil, tokenEndpoint.Client(), tokenEndpoint.URL, "id", "secret", &memorySaver{})
	client := NewClient(nil, api.Client(), lookup, refresher)

	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    api.URL,
		Body:   []byte(`{"message":"hi"}`),
	}, "stale-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), apiCalls.Load(), "original attempt plus one replay")
	assert.Equal(t, int32(1), refreshCalls.Load(), "exactly one refresh")
}

func TestClient_SecondUnauthorizedIsTerminal(t *testing.T) {
	var apiCalls, refreshCalls atomic.Int32

	// The API rejects every token, fresh or not.
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	tokenEndpoint := newRefreshServer(t, &refreshCalls)
	defer tokenEndpoint.Close()

	lookup := &memoryLookup{byToken: map[string]Credential{
		"stale-token": {ID: "cred-1", AccessToken: "stale-token", RefreshToken: "refresh-1"},
	}}
	refresher := NewRefresher(nil, tokenEndpoint.Client(), tokenEndpoint.URL, "id", "secret", &memorySaver{})
	client := NewClient(nil, api.Client(), lookup, refresher)

	resp, err := client.Do(context.Background(), Request{Method: http.MethodGet, URL: api.URL}, "stale-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "second 401 propagates to the caller")
	assert.Equal(t, int32(2), apiCalls.Load(), "no retry loop past the single replay")
	assert.Equal(t, int32(1), refreshCalls.Load())
}

func TestClient_NoRetryWhenTokenUnknown(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	lookup := &memoryLookup{byToken: map[string]Credential{}}
	refresher := NewRefresher(nil, nil, "http://unused", "id", "secret", nil)
	client := NewClient(nil, api.Client(), lookup, refresher)

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, URL: api.URL}, "unknown-token")
	require.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestClient_SuccessSkipsRefreshPath(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	lookup := &memoryLookup{byToken: map[string]Credential{}}
	client := NewClient(nil, api.Client(), lookup, nil)

	resp, err := client.Do(context.Background(), Request{Method: http.MethodGet, URL: api.URL}, "good-token")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(0), lookup.calls.Load())
}
