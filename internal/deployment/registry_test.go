package deployment_test

import (
	"testing"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

type stubHandler struct {
	platform deployment.PlatformType
}

func (h *stubHandler) Platform() deployment.PlatformType { return h.platform }

func (h *stubHandler) Descriptor() deployment.Descriptor {
	return deployment.Descriptor{Platform: h.platform, DisplayName: string(h.platform)}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()
	reg := deployment.NewRegistry()
	reg.MustRegister(&stubHandler{platform: deployment.PlatformSlack})

	h, ok := reg.Get(deployment.PlatformSlack)
	if !ok || h == nil {
		t.Fatalf("Get(slack) = (%v, %v), want handler", h, ok)
	}
	if _, ok := reg.Get(deployment.PlatformDiscord); ok {
		t.Fatalf("Get(discord) should miss on empty registration")
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	t.Parallel()
	reg := deployment.NewRegistry()
	reg.MustRegister(&stubHandler{platform: deployment.PlatformSlack})
	if err := reg.Register(&stubHandler{platform: deployment.PlatformSlack}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
}

func TestRegistry_RejectsUnknownPlatform(t *testing.T) {
	t.Parallel()
	reg := deployment.NewRegistry()
	if err := reg.Register(&stubHandler{platform: deployment.PlatformType("msteams")}); err == nil {
		t.Fatalf("unknown platform should be rejected")
	}
}

func TestRegistry_Parse(t *testing.T) {
	t.Parallel()
	reg := deployment.NewRegistry()
	reg.MustRegister(&stubHandler{platform: deployment.PlatformGoHighLevel})

	platform, err := reg.Parse("GoHighLevel")
	if err != nil || platform != deployment.PlatformGoHighLevel {
		t.Fatalf("Parse(GoHighLevel) = (%v, %v)", platform, err)
	}
	if _, err := reg.Parse("slack"); err == nil {
		t.Fatalf("Parse should reject platforms that are valid but unregistered")
	}
}
