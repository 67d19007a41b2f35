package netlink

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestRequestRoundTrip(t *testing.T) {
	ifinfo := make([]byte, 16) // sizeof(struct ifinfomsg)

	req := NewRequest(unix.RTM_NEWLINK, unix.NLM_F_REQUEST|unix.NLM_F_CREATE, ifinfo)
	req.AttrString(unix.IFLA_IFNAME, "veth0")
	req.OpenNested(unix.IFLA_LINKINFO)
	req.AttrString(unix.IFLA_INFO_KIND, "veth")
	req.CloseNested()
	req.AttrUint32(unix.IFLA_NET_NS_PID, 4242)

	req.setSeqPid(1, 100)

	msgs, err := unix.ParseNetlinkMessage(req.Bytes())
	if err != nil {
		t.Fatalf("ParseNetlinkMessage: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	m := msgs[0]
	if m.Header.Type != unix.RTM_NEWLINK {
		t.Fatalf("unexpected type: %v", m.Header.Type)
	}
	if m.Header.Seq != 1 || m.Header.Pid != 100 {
		t.Fatalf("unexpected seq/pid: %v/%v", m.Header.Seq, m.Header.Pid)
	}

	attrs, err := unix.ParseNetlinkRouteAttr(&m)
	if err != nil {
		t.Fatalf("ParseNetlinkRouteAttr: %v", err)
	}

	var sawName, sawNested, sawPid bool
	for _, a := range attrs {
		switch a.Attr.Type {
		case unix.IFLA_IFNAME:
			sawName = true
			if got := string(a.Value[:len(a.Value)-1]); got != "veth0" {
				t.Fatalf("IFLA_IFNAME = %q, want veth0", got)
			}
		case unix.IFLA_LINKINFO:
			sawNested = true
		case unix.IFLA_NET_NS_PID:
			sawPid = true
			if got := nativeEndian.Uint32(a.Value); got != 4242 {
				t.Fatalf("IFLA_NET_NS_PID = %d, want 4242", got)
			}
		}
	}

	if !sawName || !sawNested || !sawPid {
		t.Fatalf("missing expected attributes: name=%v nested=%v pid=%v", sawName, sawNested, sawPid)
	}
}

func TestCloseNestedWithoutOpenPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()

	req := NewRequest(unix.RTM_NEWLINK, unix.NLM_F_REQUEST, nil)
	req.CloseNested()
}
