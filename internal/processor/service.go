package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/botdeckhq/botdeck/internal/conversation"
	"github.com/botdeckhq/botdeck/internal/deployment"
)

// StatusThinking is the indicator adapters surface while the model runs.
const StatusThinking = "is thinking..."

// Service is the default Runner.
type Service struct {
	logger        *slog.Logger
	conversations conversation.Service
	llm           LLM
	systemPrompt  string
	historyLimit  int32
}

var _ Runner = (*Service)(nil)

// NewService creates the processor.
func NewService(log *slog.Logger, conversations conversation.Service, llm LLM, systemPrompt string, historyLimit int32) *Service {
	if log == nil {
		log = slog.Default()
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Service{
		logger:        log.With(slog.String("service", "processor")),
		conversations: conversations,
		llm:           llm,
		systemPrompt:  systemPrompt,
		historyLimit:  historyLimit,
	}
}

// Run executes the pipeline: upsert the conversation, load history, persist
// the user turn, generate, deliver, persist the assistant turn. History is
// loaded before the new turn is appended so the inbound message rides on top
// of a full window instead of consuming one of its slots. The user turn is
// persisted before generation so it survives a model failure.
func (s *Service) Run(ctx context.Context, req Request) error {
	log := s.logger.With(
		slog.String("conversation_id", req.ConversationID),
		slog.String("source", req.Source.String()),
	)

	deployment.SetStatusIfSupported(ctx, req.Platform, StatusThinking)

	if _, err := s.conversations.Upsert(ctx, conversation.Conversation{
		ID:             req.ConversationID,
		BotID:          req.BotID,
		ExternalUserID: req.UserID,
		Source:         req.Source,
		Status:         conversation.StatusActive,
		Metadata:       req.Metadata,
	}); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	stored, err := s.conversations.ListLatest(ctx, req.ConversationID, s.historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if _, err := s.conversations.AppendMessage(ctx, conversation.AppendInput{
		ConversationID: req.ConversationID,
		Role:           deployment.RoleUser,
		Content:        req.Content,
	}); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}

	messages := make([]deployment.NormalizedMessage, 0, len(stored)+2)
	if s.systemPrompt != "" {
		messages = append(messages, deployment.NormalizedMessage{Role: deployment.RoleSystem, Content: s.systemPrompt})
	}
	messages = append(messages, conversation.History(stored)...)
	messages = append(messages, deployment.NormalizedMessage{Role: deployment.RoleUser, Content: req.Content})

	reply, err := s.generate(ctx, req.Platform, messages)
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}
	if reply.Content == "" {
		log.Warn("model returned empty reply, skipping delivery")
		return nil
	}

	responseMessages, err := deployment.EncodeAssistantTurns(reply.Turns)
	if err != nil {
		return fmt.Errorf("encode assistant turns: %w", err)
	}
	if _, err := s.conversations.AppendMessage(ctx, conversation.AppendInput{
		ConversationID:   req.ConversationID,
		Role:             deployment.RoleAssistant,
		Content:          reply.Content,
		ResponseMessages: responseMessages,
	}); err != nil {
		// The reply already reached the user; losing the row only degrades
		// future history.
		log.Error("persist assistant turn failed", slog.String("error", err.Error()))
	}
	return nil
}

// generate produces the reply and delivers it. Streaming adapters receive
// the first delta via SendMessage and the rest via AppendToMessage;
// everything else gets one SendMessage with the complete reply.
func (s *Service) generate(ctx context.Context, platform deployment.Platform, messages []deployment.NormalizedMessage) (Reply, error) {
	streamer, canStream := platform.(deployment.Streamer)
	streamLLM, llmStreams := s.llm.(StreamingLLM)

	if platform.SupportsStreaming() && canStream && llmStreams {
		opened := false
		reply, err := streamLLM.Stream(ctx, messages, func(chunk string) error {
			if !opened {
				opened = true
				return platform.SendMessage(ctx, chunk)
			}
			return streamer.AppendToMessage(ctx, chunk)
		})
		if err != nil {
			return Reply{}, err
		}
		return reply, nil
	}

	reply, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return Reply{}, err
	}
	if reply.Content != "" {
		if err := platform.SendMessage(ctx, reply.Content); err != nil {
			return Reply{}, fmt.Errorf("send reply: %w", err)
		}
	}
	return reply, nil
}
