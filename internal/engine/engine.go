// Package engine drives the jail's lifecycle: clone-flag assembly, the
// parent/child rendezvous across the clone boundary, and final reap.
// Grounded on cmd/minimega/container.go's launch()/containerShim()
// split — the teacher's own comment there explains why: "golang can't
// easily support the typical clone+exec method of firing off a child
// process... we have two options... We'll use the forkAndExec method",
// i.e. exec.Cmd with Cloneflags re-executing the same binary rather than
// a literal clone(2) resuming mid-function. This package keeps that
// split and that fd-passing idiom, generalized from minimega's
// container-VM bookkeeping to spec.md's parent/child state machine.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/cgroup"
	"github.com/ghedo/jail/internal/dev"
	"github.com/ghedo/jail/internal/jailerr"
	"github.com/ghedo/jail/internal/jaillog"
	"github.com/ghedo/jail/internal/machinereg"
	"github.com/ghedo/jail/internal/netif"
	"github.com/ghedo/jail/internal/pty"
	"github.com/ghedo/jail/internal/syncchan"
	"github.com/ghedo/jail/internal/usermap"
)

// ShimArg, passed as os.Args[1], tells cmd/jail's main to dispatch into
// ShimMain instead of parsing the regular CLI.
const ShimArg = "__jail-shim"

func cloneFlags(cfg *Config) uintptr {
	var flags uintptr
	if !cfg.NoMountNS {
		flags |= unix.CLONE_NEWNS
	}
	if !cfg.NoIpcNS {
		flags |= unix.CLONE_NEWIPC
	}
	if !cfg.NoPidNS {
		flags |= unix.CLONE_NEWPID
	}
	if !cfg.NoUtsNS {
		flags |= unix.CLONE_NEWUTS
	}
	if cfg.NewUser {
		flags |= unix.CLONE_NEWUSER
	}
	if cfg.NewNet {
		flags |= unix.CLONE_NEWNET
	}
	return flags
}

// Run executes the full parent-side sequence for cfg and returns the
// exit status to report to the jail's own caller.
func Run(cfg *Config) (int, error) {
	if cfg.Detach {
		if err := Daemonize(); err != nil {
			return 1, err
		}
	}

	master, err := pty.OpenMaster()
	if err != nil {
		return 1, err
	}
	if err := master.ApplyStdinState(); err != nil {
		return 1, err
	}

	pair, err := syncchan.New()
	if err != nil {
		return 1, err
	}

	var scratch string
	if cfg.Ephemeral {
		scratch, err = os.MkdirTemp("", "jail-")
		if err != nil {
			return 1, jailerr.Systemf("engine.Run: mkdtemp", err)
		}
		cfg.ScratchDir = scratch
	}

	configR, configW, err := os.Pipe()
	if err != nil {
		return 1, jailerr.Systemf("engine.Run: pipe", err)
	}
	go func() {
		defer configW.Close()
		if err := json.NewEncoder(configW).Encode(cfg); err != nil {
			jaillog.Error("engine.Run: encode config: %v", err)
		}
	}()

	pid, flags, err := spawnChild(cfg, master, pair, configR)
	configR.Close()
	master.CloseSlave()
	pair.CloseChild()
	if err != nil {
		return 1, err
	}

	exitCode, err := parentSequence(cfg, master, pair, pid, flags)

	cgroups := cgroup.NewList()
	for _, c := range cfg.CgroupCtrls {
		cgroups.Add(c)
	}
	cgroups.Clean(pid)

	if scratch != "" {
		os.RemoveAll(scratch)
	}

	return exitCode, err
}

// spawnChild starts the re-exec'd shim and returns its pid along with
// the clone flags actually used to start it (EINVAL against an
// unprivileged CLONE_NEWUSER drops that bit and retries once).
func spawnChild(cfg *Config, master *pty.Master, pair *syncchan.Pair, configR *os.File) (int, uintptr, error) {
	flags := cloneFlags(cfg)

	for {
		cmd := &exec.Cmd{
			Path:       "/proc/self/exe",
			Args:       []string{"jail", ShimArg},
			ExtraFiles: []*os.File{pair.ChildFile(), configR},
			Stdin:      master.Slave,
			Stdout:     master.Slave,
			Stderr:     master.Slave,
			SysProcAttr: &unix.SysProcAttr{
				Cloneflags: flags,
				Setsid:     true,
				Setctty:    true,
				Ctty:       0,
			},
		}

		err := cmd.Start()
		if err == nil {
			return cmd.Process.Pid, flags, nil
		}

		if flags&unix.CLONE_NEWUSER != 0 && isEINVAL(err) {
			jaillog.Debug("engine.spawnChild: retrying without CLONE_NEWUSER: %v", err)
			flags &^= unix.CLONE_NEWUSER
			continue
		}

		return 0, 0, jailerr.Systemf("engine.spawnChild", err)
	}
}

func isEINVAL(err error) bool {
	return errors.Is(err, unix.EINVAL)
}

// parentSequence is spec.md 4.12 step 8. flags is whatever spawnChild
// actually started the child with, which may have CLONE_NEWUSER
// stripped relative to cfg's request.
func parentSequence(cfg *Config, master *pty.Master, pair *syncchan.Pair, pid int, flags uintptr) (int, error) {
	if err := pair.Wait(syncchan.Parent, syncchan.Start); err != nil {
		return 1, err
	}

	gotUserNS := flags&unix.CLONE_NEWUSER != 0
	gotNetNS := flags&unix.CLONE_NEWNET != 0

	if cfg.Rootfs != "" && gotUserNS {
		if err := fixupConsoleOwner(cfg, master); err != nil {
			jaillog.Warn("engine: console owner fixup: %v", err)
		}
	}

	cgroups := cgroup.NewList()
	for _, c := range cfg.CgroupCtrls {
		cgroups.Add(c)
	}
	if err := cgroups.Setup(pid); err != nil {
		return 1, err
	}

	if gotNetNS && len(cfg.NetifSpecs) > 0 {
		netifs := netif.NewList()
		for _, spec := range cfg.NetifSpecs {
			if err := netifs.Add(spec); err != nil {
				return 1, err
			}
		}
		if err := netif.Apply(pid, netifs); err != nil {
			return 1, err
		}
	}

	if cfg.MachineReg {
		machinereg.Register(pid, cfg.Rootfs)
	}

	if gotUserNS {
		maps := usermap.NewMaps()
		for _, e := range cfg.IDMapEntries {
			maps.Add(e.Kind, e.ContainerID, e.HostID, e.Count)
		}
		if err := maps.Apply(pid); err != nil {
			return 1, err
		}
	}

	if err := pair.Wake(syncchan.Parent, syncchan.Done); err != nil {
		return 1, err
	}
	pair.CloseParent()

	if cfg.Detach {
		if err := pty.Serve(master, pid); err != nil {
			jaillog.Warn("engine: serve: %v", err)
		}

		unix.Kill(pid, unix.SIGKILL)

		return reapAndReport(pid)
	}

	if err := master.EnterRaw(); err != nil {
		jaillog.Debug("engine: enter raw: %v", err)
	}
	defer master.Restore()

	if err := master.Pump(pid); err != nil {
		jaillog.Warn("engine: pump: %v", err)
	}

	unix.Kill(pid, unix.SIGKILL)

	return reapAndReport(pid)
}

// reapAndReport waits for pid and prints a decorated "Child exited"
// status line, then returns the exit status to give back to the jail's
// own caller.
func reapAndReport(pid int) (int, error) {
	code, err := reap(pid)
	if err != nil {
		jaillog.Status(false, false, "Child exited: %v", err)
		return code, err
	}
	jaillog.Status(code == 0, code != 0, "Child exited (status %d)", code)
	return code, nil
}

func fixupConsoleOwner(cfg *Config, master *pty.Master) error {
	path, err := master.SlavePath()
	if err != nil {
		return err
	}

	rootuid, rootgid := 0, 0
	for _, e := range cfg.IDMapEntries {
		if e.ContainerID == 0 {
			if e.Kind == usermap.UID {
				rootuid = e.HostID
			} else {
				rootgid = e.HostID
			}
		}
	}

	return dev.ConsoleOwner(path, rootuid, rootgid)
}

func reap(pid int) (int, error) {
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	if err != nil {
		return 1, jailerr.Systemf("engine.reap", err)
	}

	switch {
	case ws.Exited():
		return ws.ExitStatus(), nil
	case ws.Signaled():
		return 128 + int(ws.Signal()), nil
	default:
		return 1, fmt.Errorf("engine: child %d in unexpected wait state", pid)
	}
}

// readConfig is used by ShimMain in child.go, kept here since it
// mirrors the encoder above.
func readConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, jailerr.Protocolf("engine.readConfig", "decode: %v", err)
	}
	return &cfg, nil
}
