package pty

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
	"github.com/ghedo/jail/internal/jaillog"
)

// SocketName returns the abstract unix socket address a detached
// instance's master fd is served on, namespaced by pid so concurrent
// jails never collide. Abstract sockets (leading NUL byte in the
// address, dropped entirely here per Linux convention) vanish on their
// own once every holder closes them, so there's no path to unlink.
func SocketName(pid int) string {
	return fmt.Sprintf("jail/%d/console", pid)
}

// acceptResult carries the outcome of one unix.Accept call from the
// accept goroutine in Serve to its main select loop.
type acceptResult struct {
	conn int
	err  error
}

// Serve listens on the abstract socket for pid, and for every connection
// received from a peer whose euid matches our own, passes the master fd
// across via SCM_RIGHTS and closes its own reference; a peer with a
// different euid is refused outright. One server can field repeated
// attach/detach cycles for as long as the jail runs, and terminates on
// the same signal set pump.go's attached loop does, so the lifecycle
// engine's post-sequence cleanup still runs once the jailed child exits
// or the detached parent is asked to stop.
func Serve(master *Master, pid int) error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return jailerr.Systemf("pty.Serve: socket", err)
	}
	defer unix.Close(fd)

	addr := &unix.SockaddrUnix{Name: "\x00" + SocketName(pid)}
	if err := unix.Bind(fd, addr); err != nil {
		return jailerr.Systemf("pty.Serve: bind", err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		return jailerr.Systemf("pty.Serve: listen", err)
	}

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGCHLD, syscall.Signal(unix.SIGRTMIN()+4))
	defer signal.Stop(sigCh)

	acceptCh := make(chan acceptResult, 1)
	go func() {
		for {
			conn, _, err := unix.Accept(fd)
			acceptCh <- acceptResult{conn, err}
			if err != nil {
				return
			}
		}
	}()

	euid := os.Geteuid()

	for {
		select {
		case sig := <-sigCh:
			if sig == unix.SIGCHLD && !exited(pid) {
				continue
			}
			return nil

		case res := <-acceptCh:
			if res.err != nil {
				return jailerr.Systemf("pty.Serve: accept", res.err)
			}

			cred, err := unix.GetsockoptUcred(res.conn, unix.SOL_SOCKET, unix.SO_PEERCRED)
			if err != nil || int(cred.Uid) != euid {
				jaillog.Debug("pty.Serve: refusing peer with mismatched credentials")
				unix.Close(res.conn)
				continue
			}

			rights := unix.UnixRights(int(master.PTY.Fd()))
			if err := unix.Sendmsg(res.conn, []byte{0}, rights, nil, 0); err != nil {
				jaillog.Warn("pty.Serve: sendmsg: %v", err)
			}
			unix.Close(res.conn)
		}
	}
}

// Attach connects to a running jail's console socket and returns the
// master fd handed over via SCM_RIGHTS, wrapped as an *os.File.
func Attach(pid int) (*os.File, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, jailerr.Systemf("pty.Attach: socket", err)
	}
	defer unix.Close(fd)

	addr := &unix.SockaddrUnix{Name: "\x00" + SocketName(pid)}
	if err := unix.Connect(fd, addr); err != nil {
		return nil, jailerr.Systemf("pty.Attach: connect", err)
	}

	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	_, _, _, _, err = unix.Recvmsg(fd, buf, oob, 0)
	if err != nil {
		return nil, jailerr.Systemf("pty.Attach: recvmsg", err)
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, jailerr.Systemf("pty.Attach: parse control message", err)
	}
	if len(cmsgs) == 0 {
		return nil, jailerr.Protocolf("pty.Attach", "no control message received")
	}

	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil {
		return nil, jailerr.Systemf("pty.Attach: parse rights", err)
	}
	if len(fds) != 1 {
		return nil, jailerr.Protocolf("pty.Attach", "expected 1 fd, got %d", len(fds))
	}

	return os.NewFile(uintptr(fds[0]), "pty-master"), nil
}
