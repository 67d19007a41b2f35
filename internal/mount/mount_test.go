package mount

import (
	"strings"
	"testing"
)

func TestAddBind(t *testing.T) {
	l := NewList()
	if err := l.Add("bind:/src:/dst"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != Bind || e.Source != "/src" || e.Dest != "/dst" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestAddBindRO(t *testing.T) {
	l := NewList()
	if err := l.Add("bind-ro:/src:/dst"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if l.Entries()[0].Kind != BindRO {
		t.Fatalf("expected BindRO kind")
	}
}

func TestAddOverlayRejectsSharedPaths(t *testing.T) {
	l := NewList()
	if err := l.Add("overlay:/a:/a:/work"); err == nil {
		t.Fatal("expected error for overlapping upper/dst")
	}
}

func TestAddOverlayOK(t *testing.T) {
	l := NewList()
	if err := l.Add("overlay:/upper:/dst:/work"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e := l.Entries()[0]
	if e.Kind != Overlay || e.Overlay.Upper != "/upper" || e.Overlay.Work != "/work" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestAddTmp(t *testing.T) {
	l := NewList()
	if err := l.Add("tmp:/scratch"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if l.Entries()[0].Kind != Tmp {
		t.Fatalf("expected Tmp kind")
	}
}

func TestAddRejectsRelativePaths(t *testing.T) {
	l := NewList()
	if err := l.Add("bind:src:/dst"); err == nil {
		t.Fatal("expected error for relative source")
	}
}

func TestAddRejectsUnknownKind(t *testing.T) {
	l := NewList()
	if err := l.Add("weird:/a:/b"); err == nil {
		t.Fatal("expected error for unknown mount kind")
	}
}

func TestDefaultOverlayLowerFillsUnsetLower(t *testing.T) {
	e := Entry{
		Dest: "/dst",
		Kind: Overlay,
		Overlay: &OverlayData{
			Upper: "/upper",
			Work:  "/work",
		},
	}

	defaultOverlayLower("/root/dst", e)

	if e.Overlay.Lower != "/root/dst" {
		t.Fatalf("expected Lower to default to resolved dst, got %q", e.Overlay.Lower)
	}

	_, fstype, data := resolve("/root", "/root/dst", e)
	if fstype != "overlay" {
		t.Fatalf("expected overlay fstype, got %q", fstype)
	}
	if !strings.Contains(data, "lowerdir=/root/dst") {
		t.Fatalf("expected non-empty lowerdir in mount data, got %q", data)
	}
}

func TestDefaultOverlayLowerLeavesExplicitLower(t *testing.T) {
	e := Entry{
		Dest: "/dst",
		Kind: Overlay,
		Overlay: &OverlayData{
			Upper: "/upper",
			Work:  "/work",
			Lower: "/explicit-lower",
		},
	}

	defaultOverlayLower("/root/dst", e)

	if e.Overlay.Lower != "/explicit-lower" {
		t.Fatalf("expected explicit Lower to survive, got %q", e.Overlay.Lower)
	}
}

func TestStandardSetOrderAndCount(t *testing.T) {
	entries := standardSet("/root")
	if len(entries) != 9 {
		t.Fatalf("expected 9 standard entries, got %d", len(entries))
	}
	if entries[0].Dest != "/proc" {
		t.Fatalf("expected /proc first, got %s", entries[0].Dest)
	}
	if entries[len(entries)-1].Dest != "/sys/fs/cgroup" {
		t.Fatalf("expected cgroup2 last, got %s", entries[len(entries)-1].Dest)
	}
}
