// Package processor runs the shared reply pipeline: it persists the inbound
// turn, assembles history, calls the model, and delivers the reply through
// the platform adapter the event handler provided.
package processor

import (
	"context"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// Request carries one inbound message through the pipeline. Platform is the
// per-thread adapter the reply is delivered through.
type Request struct {
	BotID          string
	UserID         string
	OrganizationID string
	Source         deployment.PlatformType
	// DeploymentType is the channel the message arrived on, e.g. "SMS" for
	// GoHighLevel or "im" for Slack.
	DeploymentType string
	ConversationID string
	Content        string
	Metadata       map[string]any
	Platform       deployment.Platform
}

// Runner executes the pipeline for one inbound message. Event handlers
// submit requests through the dispatcher, so Run sees an already-detached
// context.
type Runner interface {
	Run(ctx context.Context, req Request) error
}

// Reply is the model's answer: flattened content for delivery plus the
// structured turns stored for history replay.
type Reply struct {
	Content string
	Turns   []deployment.NormalizedMessage
}

// LLM generates replies from normalized history. Stream is optional; the
// service falls back to Complete when streaming is unsupported or the
// adapter cannot render increments.
type LLM interface {
	Complete(ctx context.Context, messages []deployment.NormalizedMessage) (Reply, error)
}

// StreamingLLM is implemented by models that can emit incremental deltas.
type StreamingLLM interface {
	LLM
	Stream(ctx context.Context, messages []deployment.NormalizedMessage, onDelta func(chunk string) error) (Reply, error)
}
