package engine

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
)

// DaemonizedMarker is inserted as os.Args[1] of the re-exec'd copy so it
// knows not to daemonize again. It has to land at argv[1], ahead of the
// user's own flags and command, since flag.Parse stops at the first
// non-flag token and anything after the command would be swept into it
// instead of being seen as ours. main skips over it when parsing flags
// but leaves it in os.Args, where Daemonize checks for it.
const DaemonizedMarker = "__jail-daemonized"

// Daemonize detaches the process from its controlling terminal: it
// re-execs a copy of itself in a new session with stdio on /dev/null,
// and exits the original. A Go process can't safely replicate the
// original's literal fork()+daemon(0,0) in place (goroutines and the
// runtime's own threads survive a fork but not cleanly past one), so a
// real re-exec stands in for it, the same way the clone-child itself is
// started as a fresh process rather than a resumed one.
func Daemonize() error {
	if len(os.Args) > 1 && os.Args[1] == DaemonizedMarker {
		return nil
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return jailerr.Systemf("engine.Daemonize: open /dev/null", err)
	}
	defer devnull.Close()

	args := append([]string{DaemonizedMarker}, os.Args[1:]...)
	cmd := exec.Command(os.Args[0], args...)
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &unix.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return jailerr.Systemf("engine.Daemonize: start", err)
	}

	os.Exit(0)
	return nil
}
