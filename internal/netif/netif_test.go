package netif

import "testing"

func TestAddMove(t *testing.T) {
	l := NewList()
	if err := l.Add("eth0,wan0"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e := l.Entries()[0]
	if e.Type != Move || e.Device != "eth0" || e.Inside != "wan0" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestAddMacvlan(t *testing.T) {
	l := NewList()
	if err := l.Add("macvlan,eth0,net0"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e := l.Entries()[0]
	if e.Type != Macvlan || e.Device != "eth0" || e.Inside != "net0" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestAddIpvlan(t *testing.T) {
	l := NewList()
	if err := l.Add("ipvlan,eth0,net0"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if l.Entries()[0].Type != Ipvlan {
		t.Fatalf("expected Ipvlan type")
	}
}

func TestAddVeth(t *testing.T) {
	l := NewList()
	if err := l.Add("veth,veth0,eth0"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e := l.Entries()[0]
	if e.Type != Veth || e.Peer != "veth0" || e.Inside != "eth0" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestAddRejectsMalformed(t *testing.T) {
	l := NewList()
	if err := l.Add("macvlan,onlyone"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTempNameNamespacedByPid(t *testing.T) {
	if tempName(1) == tempName(2) {
		t.Fatal("expected distinct temp names")
	}
}
