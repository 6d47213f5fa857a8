package deployment

import "testing"

func TestDeriveConversationID_Deterministic(t *testing.T) {
	t.Parallel()
	a := DeriveConversationID(PlatformSlack, "C1", "100.1")
	b := DeriveConversationID(PlatformSlack, "C1", "100.1")
	if a != b {
		t.Fatalf("same natural key produced different ids: %s vs %s", a, b)
	}
}

func TestDeriveConversationID_DistinctKeys(t *testing.T) {
	t.Parallel()
	base := DeriveConversationID(PlatformSlack, "C1", "100.1")
	variants := [][2]interface{}{
		{PlatformSlack, []string{"C1", "100.2"}},
		{PlatformSlack, []string{"C2", "100.1"}},
		{PlatformGoHighLevel, []string{"C1", "100.1"}},
	}
	for _, v := range variants {
		got := DeriveConversationID(v[0].(PlatformType), v[1].([]string)...)
		if got == base {
			t.Fatalf("distinct key %v collided with base id %s", v, base)
		}
	}
}

func TestDeriveConversationID_ValidUUID(t *testing.T) {
	t.Parallel()
	id := DeriveConversationID(PlatformGoHighLevel, "contact-1", "location-1")
	if id.Version() != 5 {
		t.Fatalf("expected name-based (v5) uuid, got version %d", id.Version())
	}
}
