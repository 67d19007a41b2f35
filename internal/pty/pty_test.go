package pty

import (
	"testing"
)

func TestSocketNameNamespacedByPid(t *testing.T) {
	a := SocketName(100)
	b := SocketName(200)
	if a == b {
		t.Fatalf("expected distinct socket names, got %q twice", a)
	}
	if a != "jail/100/console" {
		t.Fatalf("unexpected socket name: %q", a)
	}
}

func TestOpenMasterProducesUsablePair(t *testing.T) {
	m, err := OpenMaster()
	if err != nil {
		t.Fatalf("OpenMaster: %v", err)
	}
	defer m.PTY.Close()
	defer m.CloseSlave()

	if m.PTY == nil || m.Slave == nil {
		t.Fatal("expected both master and slave file handles")
	}

	if err := m.ApplyStdinState(); err != nil {
		t.Fatalf("ApplyStdinState: %v", err)
	}
}
