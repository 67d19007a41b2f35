package caps

import "testing"

func TestParseAddDefault(t *testing.T) {
	l, err := Parse([]string{"net_admin"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(l.entries) != 1 || l.entries[0].Action != Add {
		t.Fatalf("expected a single Add entry, got %+v", l.entries)
	}
}

func TestParseDrop(t *testing.T) {
	l, err := Parse([]string{"-sys_admin"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.entries[0].Action != Drop {
		t.Fatalf("expected Drop action")
	}
}

func TestParseDashAllClears(t *testing.T) {
	l, err := Parse([]string{"-all", "+net_bind_service"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !l.clearAll {
		t.Fatal("expected clearAll to be set")
	}
	if len(l.entries) != 1 {
		t.Fatalf("expected 1 entry after -all, got %d", len(l.entries))
	}
}

func TestParseAllSentinelIsNoop(t *testing.T) {
	l, err := Parse([]string{"all", "net_admin"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.clearAll {
		t.Fatal("expected clearAll to remain false for the all/+all sentinel")
	}
	if len(l.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(l.entries))
	}
}

func TestParseRejectsAllNotFirst(t *testing.T) {
	if _, err := Parse([]string{"net_admin", "all"}); err == nil {
		t.Fatal("expected error for all outside first position")
	}
}

func TestParseRejectsUnknownCapability(t *testing.T) {
	if _, err := Parse([]string{"not_a_real_capability"}); err == nil {
		t.Fatal("expected error for unknown capability name")
	}
}

func TestLookupAcceptsCapPrefix(t *testing.T) {
	a, err := lookup("CAP_NET_ADMIN")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	b, err := lookup("net_admin")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if a != b {
		t.Fatalf("expected prefixed and bare lookups to match: %v != %v", a, b)
	}
}
