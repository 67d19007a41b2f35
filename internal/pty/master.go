// Package pty bridges a child's controlling terminal back to the
// invoker: opening the master/slave pair, pumping I/O while attached,
// and detaching/attaching over an abstract socket with
// SCM_RIGHTS fd-passing. It generalizes the teacher's plain-pipe console
// bridge (ContainerVM.console in container.go, a unix-socket listener
// shuttling stdin/stdout/stderr pipes) into a real pseudoterminal.
package pty

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/ghedo/jail/internal/jailerr"
)

// Master holds the parent's end of the pseudoterminal plus whatever
// needs restoring on stdin when the attached pump loop exits.
type Master struct {
	PTY  *os.File // parent-held master fd
	Slave *os.File // handed to the child as its controlling terminal

	stdinWasTTY bool
	origState   *term.State
}

// OpenMaster opens a fresh pseudoterminal pair and records whether stdin
// is a terminal. It doesn't read stdin's termios or window size itself;
// ApplyStdinState copies those onto the slave.
func OpenMaster() (*Master, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, jailerr.Systemf("pty.OpenMaster", err)
	}

	m := &Master{PTY: ptmx, Slave: tty}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		m.stdinWasTTY = true
	}

	return m, nil
}

// ApplyStdinState copies stdin's termios and window size onto the slave,
// when stdin was originally a terminal. Spec'd to run once the slave
// exists and before the child takes it over.
func (m *Master) ApplyStdinState() error {
	if !m.stdinWasTTY {
		return nil
	}

	termios, err := unix.IoctlGetTermios(int(os.Stdin.Fd()), unix.TCGETS)
	if err != nil {
		return jailerr.Systemf("pty.ApplyStdinState: get termios", err)
	}
	if err := unix.IoctlSetTermios(int(m.Slave.Fd()), unix.TCSETS, termios); err != nil {
		return jailerr.Systemf("pty.ApplyStdinState: set termios", err)
	}

	if ws, err := unix.IoctlGetWinsize(int(os.Stdin.Fd()), unix.TIOCGWINSZ); err == nil {
		unix.IoctlSetWinsize(int(m.Slave.Fd()), unix.TIOCSWINSZ, ws)
	}

	return nil
}

// EnterRaw puts stdin into raw mode (no echo, no line buffering), saving
// the prior state for Restore.
func (m *Master) EnterRaw() error {
	if !m.stdinWasTTY {
		return nil
	}
	state, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return jailerr.Systemf("pty.EnterRaw", err)
	}
	m.origState = state
	return nil
}

// Restore puts stdin back into whatever state it was in before EnterRaw.
// Safe to call multiple times and on every exit path.
func (m *Master) Restore() {
	if m.origState != nil {
		term.Restore(int(os.Stdin.Fd()), m.origState)
		m.origState = nil
	}
}

// CloseSlave closes the parent's reference to the slave once the child
// has it (as std fds); the parent has no further use for it.
func (m *Master) CloseSlave() error {
	if m.Slave == nil {
		return nil
	}
	err := m.Slave.Close()
	m.Slave = nil
	return err
}

// SlavePath resolves the pts path backing the master, via TIOCGPTN
// (the ptsname(3) ioctl), for callers that need a path rather than an
// fd — namely the console-ownership fix-up, which has to chown the node
// from a process that doesn't hold the slave fd itself.
func (m *Master) SlavePath() (string, error) {
	n, err := unix.IoctlGetInt(int(m.PTY.Fd()), unix.TIOCGPTN)
	if err != nil {
		return "", jailerr.Systemf("pty.SlavePath", err)
	}
	return fmt.Sprintf("/dev/pts/%d", n), nil
}
