// Package netlink is a minimal route-netlink client: enough to open a
// bound AF_NETLINK/NETLINK_ROUTE socket, build a request with nested
// rtattr support, send it, and parse a single ack/error response. It is
// not a general netlink library — only what Netif needs to create and
// move links.
package netlink

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
)

// nativeEndian matches the host's byte order, as netlink messages are
// always host-endian.
var nativeEndian = binary.NativeEndian

// Conn is an open, bound route-netlink socket.
type Conn struct {
	fd  int
	seq uint32
}

// Open creates an AF_NETLINK/SOCK_RAW/NETLINK_ROUTE socket and binds it
// with nl_pid = getpid().
func Open() (*Conn, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, jailerr.Systemf("netlink.Open: socket", err)
	}

	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: uint32(os.Getpid())}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, jailerr.Systemf("netlink.Open: bind", err)
	}

	return &Conn{fd: fd}, nil
}

// Close releases the socket.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

// Execute sends req to the kernel and waits for a single ack/error
// response. A response of type NLMSG_ERROR with a nonzero error code is
// reported as a jailerr.Protocol error carrying strerror(-err).
func (c *Conn) Execute(req *Request) error {
	c.seq++
	req.setSeqPid(c.seq, uint32(os.Getpid()))

	if err := unix.Sendto(c.fd, req.Bytes(), 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		return jailerr.Systemf("netlink.Execute: sendto", err)
	}

	buf := make([]byte, 8192)
	n, _, err := unix.Recvfrom(c.fd, buf, 0)
	if err != nil {
		return jailerr.Systemf("netlink.Execute: recvfrom", err)
	}

	msgs, err := unix.ParseNetlinkMessage(buf[:n])
	if err != nil {
		return jailerr.Protocolf("netlink.Execute", "parse response: %v", err)
	}

	for _, m := range msgs {
		if m.Header.Type != unix.NLMSG_ERROR {
			continue
		}
		if len(m.Data) < 4 {
			return jailerr.Protocolf("netlink.Execute", "short NLMSG_ERROR payload")
		}
		errno := int32(nativeEndian.Uint32(m.Data[:4]))
		if errno == 0 {
			return nil
		}
		return jailerr.Protocolf("netlink.Execute", "%s", unix.Errno(-errno).Error())
	}

	return jailerr.Protocolf("netlink.Execute", "no ack received")
}

// LinkIndex looks up a host interface's index by name.
func LinkIndex(name string) (int, error) {
	iface, err := netInterfaceByName(name)
	if err != nil {
		return 0, jailerr.Systemf("netlink.LinkIndex", fmt.Errorf("interface %q: %w", name, err))
	}
	return iface, nil
}
