package deployment

import "context"

// Platform is the adapter through which a reply reaches one specific thread
// on one specific chat platform. Adapters are constructed fresh per inbound
// event and close over the addressing of that thread; they are never reused
// across conversations.
type Platform interface {
	Type() PlatformType
	// SupportsStreaming reports whether AppendToMessage is meaningful. When
	// false the processor buffers and calls SendMessage once with the
	// complete reply.
	SupportsStreaming() bool
	// SendMessage delivers a complete reply turn. Errors propagate to the
	// caller; the event handler converts them into a user-visible failure.
	SendMessage(ctx context.Context, content string) error
}

// StatusSetter is implemented by adapters that can surface a typing or
// "thinking" indicator. Failures are cosmetic: implementations log and
// swallow them, callers never see an error beyond best-effort.
type StatusSetter interface {
	SetStatus(ctx context.Context, status string) error
}

// Streamer is implemented by adapters that support incremental delivery.
// AppendToMessage extends the reply opened by the preceding SendMessage.
type Streamer interface {
	AppendToMessage(ctx context.Context, chunk string) error
}

// SetStatusIfSupported applies a status update when the adapter supports it.
// Status updates are cosmetic, so errors are discarded.
func SetStatusIfSupported(ctx context.Context, platform Platform, status string) {
	if setter, ok := platform.(StatusSetter); ok {
		_ = setter.SetStatus(ctx, status)
	}
}
