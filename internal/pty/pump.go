package pty

import (
	"bytes"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
	"github.com/ghedo/jail/internal/jaillog"
)

type ioEvent struct {
	fd  int
	buf []byte
	err error
}

// Pump copies bytes between the master and the process's own stdio until
// the child exits, a NUL byte arrives on stdin, or a terminating signal
// is received. Window size changes on stdin (SIGWINCH) are propagated to
// the master. Grounded on the teacher's console pump in container.go,
// which runs the same shape of loop over a pair of pipes instead of a
// pty; epoll is replaced here by two blocking reader goroutines feeding
// a single select, Go's idiomatic stand-in for a single-threaded
// epoll+signalfd loop.
func (m *Master) Pump(pid int) error {
	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGCHLD, unix.SIGWINCH, syscall.Signal(unix.SIGRTMIN()+4))
	defer signal.Stop(sigCh)

	events := make(chan ioEvent, 2)
	ptyFd := int(m.PTY.Fd())
	stdinFd := int(os.Stdin.Fd())

	go readLoop(ptyFd, events)
	go readLoop(stdinFd, events)

	m.resizeSlaveToStdin()

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case unix.SIGWINCH:
				m.resizeSlaveToStdin()
			case unix.SIGCHLD:
				if exited(pid) {
					return nil
				}
			default:
				return nil
			}

		case ev := <-events:
			if ev.fd == ptyFd {
				if ev.err != nil || len(ev.buf) == 0 {
					return nil
				}
				if _, err := os.Stdout.Write(ev.buf); err != nil {
					return jailerr.Systemf("pty.Pump: stdout write", err)
				}
				go readLoop(ptyFd, events)
				continue
			}

			// stdin
			if ev.err != nil || len(ev.buf) == 0 {
				return nil
			}
			if i := bytes.IndexByte(ev.buf, 0); i >= 0 {
				if i > 0 {
					unix.Write(ptyFd, ev.buf[:i])
				}
				return nil
			}
			if _, err := unix.Write(ptyFd, ev.buf); err != nil {
				return jailerr.Systemf("pty.Pump: master write", err)
			}
			go readLoop(stdinFd, events)
		}
	}
}

func readLoop(fd int, out chan<- ioEvent) {
	buf := make([]byte, 4096)
	n, err := unix.Read(fd, buf)
	if err != nil {
		out <- ioEvent{fd: fd, err: err}
		return
	}
	out <- ioEvent{fd: fd, buf: buf[:n]}
}

func (m *Master) resizeSlaveToStdin() {
	ws, err := unix.IoctlGetWinsize(int(os.Stdin.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return
	}
	if err := unix.IoctlSetWinsize(int(m.PTY.Fd()), unix.TIOCSWINSZ, ws); err != nil {
		jaillog.Debug("pty: resize failed: %v", err)
	}
}

// exited reports whether pid has exited (or is no longer our child), via
// a non-blocking waitid with WNOWAIT so the real reap (done by the
// lifecycle engine) still observes the child.
func exited(pid int) bool {
	var info unix.Siginfo
	err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOHANG|unix.WNOWAIT, nil)
	if err != nil {
		return err == unix.ECHILD
	}
	return info.Pid() != 0
}
