package dev

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
	"github.com/ghedo/jail/internal/syncchan"
	"github.com/ghedo/jail/internal/usermap"
)

// HelperArg marks a self re-exec as the console-owner helper; cmd/jail
// checks for it at the top of main before parsing any real flags. A
// fork() inside a Go process can't safely unshare(CLONE_NEWUSER) on just
// the calling OS thread while other goroutines keep running, so the
// chown has to happen in a genuinely separate process instead of a
// forked child sharing the runtime — hence the re-exec rather than a
// literal fork() as in the original C (src/dev.c's setup_console_owner).
const HelperArg = "__jail-console-owner-helper"

// ConsoleOwner arranges for path (the pty slave serving as the jail's
// stdio) to end up owned by the container's root uid/gid, working
// around the kernel's refusal to chown a node to an id outside the
// caller's own user namespace's map. Grounded on setup_console_owner in
// original_source/src/dev.c, which has no analogue in the teacher
// (minimega containers always run as host root).
func ConsoleOwner(path string, rootuid, rootgid int) error {
	euid := os.Geteuid()
	egid := os.Getegid()

	if euid == 0 {
		return jailerr.Systemf("dev.ConsoleOwner", unix.Chown(path, rootuid, rootgid))
	}

	if rootuid == euid {
		return nil
	}

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return jailerr.Systemf("dev.ConsoleOwner: stat", err)
	}

	if int(st.Uid) == euid {
		if err := unix.Chown(path, -1, egid); err != nil {
			return jailerr.Systemf("dev.ConsoleOwner: chgrp", err)
		}
	}

	maps := usermap.NewMaps()
	maps.Add(usermap.UID, 0, rootuid, 1)
	maps.Add(usermap.UID, euid, euid, 1)
	maps.Add(usermap.GID, 0, rootgid, 1)
	maps.Add(usermap.GID, int(st.Gid), rootgid+int(st.Gid), 1)
	maps.Add(usermap.GID, egid, egid, 1)

	pair, err := syncchan.New()
	if err != nil {
		return err
	}

	cmd := exec.Command("/proc/self/exe", HelperArg, path)
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{pair.ChildFile()}
	cmd.SysProcAttr = &unix.SysProcAttr{
		Cloneflags: unix.CLONE_NEWNS | unix.CLONE_NEWUSER,
	}

	if err := cmd.Start(); err != nil {
		pair.CloseParent()
		pair.CloseChild()
		return jailerr.Systemf("dev.ConsoleOwner: start helper", err)
	}
	pair.CloseChild()

	if err := pair.Wait(syncchan.Parent, syncchan.Start); err != nil {
		return err
	}

	if err := maps.Apply(cmd.Process.Pid); err != nil {
		return err
	}

	if err := pair.Wake(syncchan.Parent, syncchan.Done); err != nil {
		return err
	}
	pair.CloseParent()

	return jailerr.Systemf("dev.ConsoleOwner: helper", cmd.Wait())
}

// RunConsoleOwnerHelper is the re-exec entry point: inside the fresh
// mount+user namespace, wait for the parent to install the id map, then
// chown path to root's mapped ids (0:sb.st_gid inside the namespace).
// args is os.Args[2:] after the HelperArg token (path only).
func RunConsoleOwnerHelper(args []string) error {
	if len(args) != 1 {
		return jailerr.Usagef("dev.RunConsoleOwnerHelper", "want exactly one path argument")
	}
	path := args[0]

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return jailerr.Systemf("dev.RunConsoleOwnerHelper: stat", err)
	}

	pair := syncchan.FromInheritedFd(3)

	if err := pair.Barrier(syncchan.Child, syncchan.Start); err != nil {
		return err
	}
	pair.CloseChild()

	if err := usermap.SetupUser("root"); err != nil {
		return err
	}

	return unix.Chown(path, 0, int(st.Gid))
}
