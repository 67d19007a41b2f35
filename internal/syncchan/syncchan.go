// Package syncchan implements the bidirectional sequenced barrier the
// parent and child use to rendezvous across the clone boundary: a
// socketpair exchanging 32-bit sequence numbers in lock-step. It
// generalizes the teacher's one-shot freeze-handshake (a pair of pipes
// used once, in container.go's launch/containerShim) into the two-phase
// START/DONE barrier spec.md's engine needs.
package syncchan

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
)

// Seq identifies a rendezvous point in the parent/child protocol.
type Seq uint32

const (
	Start Seq = iota
	Done
)

// Side names the parent or child end of a Pair.
type Side int

const (
	Parent Side = iota
	Child
)

// Pair is a connected pair of stream sockets: fd[0] is the parent side
// (close-on-exec), fd[1] is the child side.
type Pair struct {
	fds [2]int
}

// New creates a socketpair(AF_LOCAL, SOCK_STREAM) and marks the parent
// side close-on-exec.
func New() (*Pair, error) {
	fds, err := unix.Socketpair(unix.AF_LOCAL, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, jailerr.Systemf("syncchan.New", err)
	}
	if err := unix.SetNonblock(fds[0], false); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, jailerr.Systemf("syncchan.New", err)
	}
	if _, err := unix.FcntlInt(uintptr(fds[0]), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, jailerr.Systemf("syncchan.New", err)
	}

	return &Pair{fds: [2]int{fds[0], fds[1]}}, nil
}

func (p *Pair) fd(side Side) int {
	return p.fds[side]
}

// FromInheritedFd reconstructs a Pair in a re-exec'd helper process that
// inherited the child side of a socketpair as fd. Only the child side is
// valid; calls against Parent will fail.
func FromInheritedFd(fd int) *Pair {
	return &Pair{fds: [2]int{-1, fd}}
}

// ChildFile returns the child side as an *os.File suitable for handing
// to exec.Cmd.ExtraFiles, or for use directly after fork in the child.
func (p *Pair) ChildFile() *os.File {
	return os.NewFile(uintptr(p.fd(Child)), "sync-child")
}

// Wait blocks for a 32-bit sequence number on side and fails if the value
// read doesn't match seq. A zero-byte read (remote closed, e.g. because
// it exec'd) is treated as success.
func (p *Pair) Wait(side Side, seq Seq) error {
	var buf [4]byte
	n, err := unix.Read(p.fd(side), buf[:])
	if err != nil {
		return jailerr.Systemf("syncchan.Wait", err)
	}
	if n == 0 {
		return nil
	}
	if n != 4 {
		return jailerr.Protocolf("syncchan.Wait", "short read: %d bytes", n)
	}
	got := Seq(binary.NativeEndian.Uint32(buf[:]))
	if got != seq {
		return jailerr.Protocolf("syncchan.Wait", "sequence mismatch: got %d, want %d", got, seq)
	}
	return nil
}

// Wake writes seq to side.
func (p *Pair) Wake(side Side, seq Seq) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], uint32(seq))
	n, err := unix.Write(p.fd(side), buf[:])
	if err != nil {
		return jailerr.Systemf("syncchan.Wake", err)
	}
	if n != 4 {
		return jailerr.Protocolf("syncchan.Wake", "short write: %d bytes", n)
	}
	return nil
}

// Barrier wakes the peer at seq, then waits for seq+1 — a round trip used
// to confirm both sides have reached the same point.
func (p *Pair) Barrier(side Side, seq Seq) error {
	if err := p.Wake(side, seq); err != nil {
		return err
	}
	return p.Wait(side, seq+1)
}

// CloseChild closes the child side. Idempotent.
func (p *Pair) CloseChild() error {
	return closeOnce(&p.fds[Child])
}

// CloseParent closes the parent side. Idempotent.
func (p *Pair) CloseParent() error {
	return closeOnce(&p.fds[Parent])
}

func closeOnce(fd *int) error {
	if *fd < 0 {
		return nil
	}
	err := unix.Close(*fd)
	*fd = -1
	return err
}
