package credentials

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Request is a replayable outbound platform API request. The body is held
// as bytes so the 401 retry can resend it unchanged.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Client performs bearer-authenticated platform API calls with a single
// refresh-and-replay on 401. A second 401 after the replay is terminal: the
// response is returned as-is and no further retry happens.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	store      TokenLookup
	refresher  *Refresher
}

// NewClient creates an authenticated platform API client.
func NewClient(log *slog.Logger, httpClient *http.Client, store TokenLookup, refresher *Refresher) *Client {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		logger:     log.With(slog.String("component", "auth_client")),
		httpClient: httpClient,
		store:      store,
		refresher:  refresher,
	}
}

// Do sends the request with the given access token. On 401 it looks up the
// credential by the stale token, refreshes it, and replays the request
// exactly once with the new token.
func (c *Client) Do(ctx context.Context, req Request, accessToken string) (*http.Response, error) {
	resp, err := c.send(ctx, req, &oauth2.Token{AccessToken: accessToken})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || c.store == nil || c.refresher == nil {
		return resp, nil
	}
	resp.Body.Close()

	cred, err := c.store.GetByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("stale token has no stored credential: %w", err)
	}
	refreshed, err := c.refresher.Refresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	c.logger.Info("replaying request after token refresh",
		slog.String("method", req.Method),
		slog.String("url", req.URL),
	)
	return c.send(ctx, req, refreshed.Token())
}

// ReadJSONResponse drains the response and returns a StatusError for
// non-2xx statuses; otherwise the raw body.
func ReadJSONResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, req Request, token *oauth2.Token) (*http.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	token.SetAuthHeader(httpReq)
	return c.httpClient.Do(httpReq)
}
