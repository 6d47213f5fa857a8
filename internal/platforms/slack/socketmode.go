package slack

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// socketEnvelope is one frame on the Socket Mode connection.
type socketEnvelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// socketAck acknowledges receipt of an envelope. Slack redelivers anything
// not acked within a few seconds.
type socketAck struct {
	EnvelopeID string `json:"envelope_id"`
}

// SocketMode maintains a Socket Mode connection for workspaces that cannot
// expose a public webhook URL. Events flow into the same handler and
// dispatcher as the HTTP path.
type SocketMode struct {
	logger     *slog.Logger
	client     *Client
	appToken   string
	handler    *Handler
	dispatcher *deployment.Dispatcher

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSocketMode creates the Socket Mode receiver. appToken is the xapp-
// app-level token.
func NewSocketMode(log *slog.Logger, client *Client, appToken string, handler *Handler, dispatcher *deployment.Dispatcher) *SocketMode {
	if log == nil {
		log = slog.Default()
	}
	return &SocketMode{
		logger:     log.With(slog.String("component", "slack_socketmode")),
		client:     client,
		appToken:   appToken,
		handler:    handler,
		dispatcher: dispatcher,
	}
}

// Start launches the connection loop. It reconnects with backoff until
// Stop is called.
func (s *SocketMode) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop tears the connection down and waits for the loop to exit.
func (s *SocketMode) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *SocketMode) loop(ctx context.Context) {
	defer close(s.done)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.runConnection(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("socket mode connection lost",
				slog.String("error", err.Error()),
				slog.Duration("reconnect_in", backoff),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *SocketMode) runConnection(ctx context.Context) error {
	wsURL, err := s.client.OpenSocketConnection(ctx, s.appToken)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.logger.Info("socket mode connected")

	// Unblock ReadJSON when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		var env socketEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if env.EnvelopeID != "" {
			if err := conn.WriteJSON(socketAck{EnvelopeID: env.EnvelopeID}); err != nil {
				return err
			}
		}
		switch env.Type {
		case "hello":
		case "disconnect":
			// Slack asks clients to reconnect before scheduled maintenance.
			return errors.New("server requested disconnect")
		case "events_api":
			var event EventEnvelope
			if err := json.Unmarshal(env.Payload, &event); err != nil {
				s.logger.Warn("undecodable events_api payload", slog.String("error", err.Error()))
				continue
			}
			s.dispatcher.Submit(func(taskCtx context.Context) {
				s.handler.HandleEvent(taskCtx, event)
			})
		}
	}
}
