package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// OpenAI is the default LLM backed by an OpenAI-compatible chat completion
// endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ StreamingLLM = (*OpenAI)(nil)

// NewOpenAI creates the model client. baseURL overrides the API host for
// OpenAI-compatible providers; empty keeps the default.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete returns the full reply in one call.
func (o *OpenAI) Complete(ctx context.Context, messages []deployment.NormalizedMessage) (Reply, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content
	return Reply{
		Content: content,
		Turns:   []deployment.NormalizedMessage{{Role: deployment.RoleAssistant, Content: content}},
	}, nil
}

// Stream emits deltas through onDelta as they arrive and returns the
// accumulated reply. A delta callback error aborts the stream.
func (o *OpenAI) Stream(ctx context.Context, messages []deployment.NormalizedMessage, onDelta func(chunk string) error) (Reply, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion stream: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Reply{}, fmt.Errorf("stream recv: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		builder.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Reply{}, fmt.Errorf("deliver delta: %w", err)
			}
		}
	}
	content := builder.String()
	return Reply{
		Content: content,
		Turns:   []deployment.NormalizedMessage{{Role: deployment.RoleAssistant, Content: content}},
	}, nil
}

func toOpenAIMessages(messages []deployment.NormalizedMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := string(msg.Role)
		switch msg.Role {
		case deployment.RoleUser, deployment.RoleAssistant, deployment.RoleSystem:
		default:
			// Stored passthrough roles (e.g. "tool") are replayed as
			// assistant context; the upstream API rejects unknown roles.
			role = string(deployment.RoleAssistant)
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}
