package main

import (
	"testing"

	"github.com/ghedo/jail/internal/usermap"
)

func TestStringListAccumulates(t *testing.T) {
	var l stringList
	l.Set("bind:/a:/b")
	l.Set("tmp:/c")

	if len(l.values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(l.values))
	}
	if l.values[0] != "bind:/a:/b" || l.values[1] != "tmp:/c" {
		t.Fatalf("unexpected values: %v", l.values)
	}
}

func TestKvListParsesKeyValue(t *testing.T) {
	var l kvList
	if err := l.Set("FOO=bar"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := l.Set("EMPTY="); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if l.values["FOO"] != "bar" {
		t.Fatalf("expected FOO=bar, got %q", l.values["FOO"])
	}
	if v, ok := l.values["EMPTY"]; !ok || v != "" {
		t.Fatalf("expected EMPTY= to be present and empty, got %q ok=%v", v, ok)
	}
}

func TestKvListRejectsMissingEquals(t *testing.T) {
	var l kvList
	if err := l.Set("NOEQUALS"); err == nil {
		t.Fatal("expected error for missing '='")
	}
}

func TestParseIDMapsAddsBothKinds(t *testing.T) {
	entries, err := parseIDMaps([]string{"0:100000:65536"})
	if err != nil {
		t.Fatalf("parseIDMaps: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (uid+gid), got %d", len(entries))
	}
	if entries[0].Kind != usermap.UID || entries[1].Kind != usermap.GID {
		t.Fatalf("unexpected kinds: %+v", entries)
	}
	for _, e := range entries {
		if e.ContainerID != 0 || e.HostID != 100000 || e.Count != 65536 {
			t.Fatalf("unexpected entry: %+v", e)
		}
	}
}

func TestParseIDMapsRejectsMalformed(t *testing.T) {
	cases := []string{"0:100000", "a:b:c", "0:100000:65536:extra"}
	for _, c := range cases {
		if _, err := parseIDMaps([]string{c}); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestParseIDMapsCombinesMultipleEntries(t *testing.T) {
	entries, err := parseIDMaps([]string{"0:1000:1", "0:100000:65536"})
	if err != nil {
		t.Fatalf("parseIDMaps: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
}

func TestSplitCaps(t *testing.T) {
	tokens := splitCaps("-all,+net_bind_service")
	if len(tokens) != 2 || tokens[0] != "-all" || tokens[1] != "+net_bind_service" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}

	if tokens := splitCaps(""); tokens != nil {
		t.Fatalf("expected nil for empty spec, got %v", tokens)
	}
}
