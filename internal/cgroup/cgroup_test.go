package cgroup

import "testing"

func TestGroupNameIncludesPid(t *testing.T) {
	if groupName(4217) != "jail.4217" {
		t.Fatalf("unexpected group name: %s", groupName(4217))
	}
}

func TestPathJoinsControllerAndGroup(t *testing.T) {
	got := path("cpu", 100)
	want := "/sys/fs/cgroup/cpu/jail.100"
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestAddAccumulates(t *testing.T) {
	l := NewList()
	l.Add("cpu")
	l.Add("memory")
	if len(l.controllers) != 2 {
		t.Fatalf("expected 2 controllers, got %d", len(l.controllers))
	}
}
