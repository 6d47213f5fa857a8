package deployment

import (
	"fmt"
	"sync"
)

// Descriptor holds read-only metadata for a registered platform.
type Descriptor struct {
	Platform          PlatformType `json:"platform"`
	DisplayName       string       `json:"display_name"`
	SupportsStreaming bool         `json:"supports_streaming"`
}

// Handler processes one platform's native inbound events after the HTTP or
// socket boundary has validated them.
type Handler interface {
	Platform() PlatformType
	Descriptor() Descriptor
}

// Registry holds the registered platform event handlers. It is created
// explicitly and passed to the components that need it; there is no global
// instance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[PlatformType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[PlatformType]Handler{}}
}

// Register adds a handler to the registry.
func (r *Registry) Register(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is nil")
	}
	platform, err := ParsePlatformType(handler.Platform().String())
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[platform]; exists {
		return fmt.Errorf("platform already registered: %s", platform)
	}
	r.handlers[platform] = handler
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(handler Handler) {
	if err := r.Register(handler); err != nil {
		panic(err)
	}
}

// Get returns the handler for the given platform.
func (r *Registry) Get(platform PlatformType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[platform]
	return handler, ok
}

// Types returns all registered platform types.
func (r *Registry) Types() []PlatformType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]PlatformType, 0, len(r.handlers))
	for platform := range r.handlers {
		items = append(items, platform)
	}
	return items
}

// Descriptors returns descriptors for all registered platforms.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Descriptor, 0, len(r.handlers))
	for _, handler := range r.handlers {
		items = append(items, handler.Descriptor())
	}
	return items
}

// Parse validates a raw string against the registered platforms.
func (r *Registry) Parse(raw string) (PlatformType, error) {
	platform, err := ParsePlatformType(raw)
	if err != nil {
		return "", err
	}
	if _, ok := r.Get(platform); !ok {
		return "", fmt.Errorf("platform not registered: %s", raw)
	}
	return platform, nil
}
