package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdeckhq/botdeck/internal/conversation"
	"github.com/botdeckhq/botdeck/internal/deployment"
)

type memoryConversations struct {
	upserts  []conversation.Conversation
	appended []conversation.AppendInput
	stored   []conversation.Message
}

func (m *memoryConversations) Upsert(_ context.Context, conv conversation.Conversation) (conversation.Conversation, error) {
	m.upserts = append(m.upserts, conv)
	return conv, nil
}

func (m *memoryConversations) AppendMessage(_ context.Context, input conversation.AppendInput) (conversation.Message, error) {
	m.appended = append(m.appended, input)
	msg := conversation.Message{ConversationID: input.ConversationID, Role: input.Role, Content: input.Content}
	m.stored = append([]conversation.Message{msg}, m.stored...)
	return msg, nil
}

// ListLatest mirrors the store: newest first, capped at limit.
func (m *memoryConversations) ListLatest(_ context.Context, _ string, limit int32) ([]conversation.Message, error) {
	if int32(len(m.stored)) > limit {
		return m.stored[:limit], nil
	}
	return m.stored, nil
}

type fakeLLM struct {
	reply    Reply
	err      error
	gotMsgs  []deployment.NormalizedMessage
	deltas   []string
	streamed bool
}

func (f *fakeLLM) Complete(_ context.Context, messages []deployment.NormalizedMessage) (Reply, error) {
	f.gotMsgs = messages
	return f.reply, f.err
}

type fakeStreamLLM struct{ fakeLLM }

func (f *fakeStreamLLM) Stream(_ context.Context, messages []deployment.NormalizedMessage, onDelta func(string) error) (Reply, error) {
	f.gotMsgs = messages
	f.streamed = true
	for _, delta := range f.deltas {
		if err := onDelta(delta); err != nil {
			return Reply{}, err
		}
	}
	return f.reply, f.err
}

type fakePlatform struct {
	streaming bool
	sent      []string
	appends   []string
	statuses  []string
	sendErr   error
}

func (f *fakePlatform) Type() deployment.PlatformType { return deployment.PlatformSlack }
func (f *fakePlatform) SupportsStreaming() bool       { return f.streaming }
func (f *fakePlatform) SendMessage(_ context.Context, content string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, content)
	return nil
}

type fakeStreamPlatform struct{ fakePlatform }

func (f *fakeStreamPlatform) AppendToMessage(_ context.Context, chunk string) error {
	f.appends = append(f.appends, chunk)
	return nil
}

func (f *fakePlatform) SetStatus(_ context.Context, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func TestService_RunPersistsBothTurnsAndDelivers(t *testing.T) {
	conversations := &memoryConversations{}
	llm := &fakeLLM{reply: Reply{
		Content: "hi there",
		Turns:   []deployment.NormalizedMessage{{Role: deployment.RoleAssistant, Content: "hi there"}},
	}}
	platform := &fakePlatform{}
	svc := NewService(nil, conversations, llm, "You are helpful.", 10)

	err := svc.Run(context.Background(), Request{
		BotID:          "bot-1",
		UserID:         "user-1",
		Source:         deployment.PlatformSlack,
		ConversationID: "conv-1",
		Content:        "hello",
		Platform:       platform,
	})
	require.NoError(t, err)

	require.Len(t, conversations.upserts, 1)
	assert.Equal(t, conversation.StatusActive, conversations.upserts[0].Status)

	require.Len(t, conversations.appended, 2)
	assert.Equal(t, deployment.RoleUser, conversations.appended[0].Role)
	assert.Equal(t, "hello", conversations.appended[0].Content)
	assert.Equal(t, deployment.RoleAssistant, conversations.appended[1].Role)
	assert.NotEmpty(t, conversations.appended[1].ResponseMessages)

	assert.Equal(t, []string{"hi there"}, platform.sent)
	assert.Equal(t, []string{StatusThinking}, platform.statuses)

	require.NotEmpty(t, llm.gotMsgs)
	assert.Equal(t, deployment.RoleSystem, llm.gotMsgs[0].Role, "system prompt leads the context")
}

func TestService_RunIncludesHistoryOldestFirst(t *testing.T) {
	conversations := &memoryConversations{stored: []conversation.Message{
		{Role: deployment.RoleAssistant, Content: "earlier reply"},
		{Role: deployment.RoleUser, Content: "earlier question"},
	}}
	llm := &fakeLLM{reply: Reply{Content: "ok"}}
	svc := NewService(nil, conversations, llm, "", 10)

	err := svc.Run(context.Background(), Request{
		ConversationID: "conv-1",
		Content:        "next",
		Platform:       &fakePlatform{},
	})
	require.NoError(t, err)

	require.Len(t, llm.gotMsgs, 3)
	assert.Equal(t, "earlier question", llm.gotMsgs[0].Content)
	assert.Equal(t, "earlier reply", llm.gotMsgs[1].Content)
	assert.Equal(t, "next", llm.gotMsgs[2].Content, "inbound message follows the history")
}

func TestService_RunInboundMessageDoesNotConsumeHistorySlot(t *testing.T) {
	conversations := &memoryConversations{stored: []conversation.Message{
		{Role: deployment.RoleAssistant, Content: "second reply"},
		{Role: deployment.RoleUser, Content: "second question"},
	}}
	llm := &fakeLLM{reply: Reply{Content: "ok"}}
	svc := NewService(nil, conversations, llm, "", 2)

	err := svc.Run(context.Background(), Request{
		ConversationID: "conv-1",
		Content:        "third question",
		Platform:       &fakePlatform{},
	})
	require.NoError(t, err)

	require.Len(t, llm.gotMsgs, 3, "a full history window plus the new message")
	assert.Equal(t, "second question", llm.gotMsgs[0].Content)
	assert.Equal(t, "second reply", llm.gotMsgs[1].Content)
	assert.Equal(t, "third question", llm.gotMsgs[2].Content)
}

func TestService_RunStreamsWhenEverythingSupportsIt(t *testing.T) {
	conversations := &memoryConversations{}
	llm := &fakeStreamLLM{fakeLLM{
		reply:  Reply{Content: "ab", Turns: []deployment.NormalizedMessage{{Role: deployment.RoleAssistant, Content: "ab"}}},
		deltas: []string{"a", "b"},
	}}
	platform := &fakeStreamPlatform{fakePlatform{streaming: true}}
	svc := NewService(nil, conversations, llm, "", 10)

	err := svc.Run(context.Background(), Request{
		ConversationID: "conv-1",
		Content:        "stream it",
		Platform:       platform,
	})
	require.NoError(t, err)

	assert.True(t, llm.streamed)
	assert.Equal(t, []string{"a"}, platform.sent, "first delta opens the message")
	assert.Equal(t, []string{"b"}, platform.appends, "later deltas extend it")
}

func TestService_RunBuffersWhenAdapterCannotStream(t *testing.T) {
	llm := &fakeStreamLLM{fakeLLM{reply: Reply{Content: "whole"}}}
	platform := &fakePlatform{streaming: false}
	svc := NewService(nil, &memoryConversations{}, llm, "", 10)

	err := svc.Run(context.Background(), Request{ConversationID: "c", Content: "x", Platform: platform})
	require.NoError(t, err)

	assert.False(t, llm.streamed)
	assert.Equal(t, []string{"whole"}, platform.sent)
}

func TestService_RunModelFailureKeepsUserTurn(t *testing.T) {
	conversations := &memoryConversations{}
	llm := &fakeLLM{err: errors.New("model down")}
	svc := NewService(nil, conversations, llm, "", 10)

	err := svc.Run(context.Background(), Request{ConversationID: "c", Content: "hello", Platform: &fakePlatform{}})
	require.Error(t, err)

	require.Len(t, conversations.appended, 1, "user turn persisted before the model ran")
	assert.Equal(t, deployment.RoleUser, conversations.appended[0].Role)
}

func TestService_RunEmptyReplySkipsDelivery(t *testing.T) {
	platform := &fakePlatform{}
	svc := NewService(nil, &memoryConversations{}, &fakeLLM{reply: Reply{}}, "", 10)

	err := svc.Run(context.Background(), Request{ConversationID: "c", Content: "x", Platform: platform})
	require.NoError(t, err)
	assert.Empty(t, platform.sent)
}
