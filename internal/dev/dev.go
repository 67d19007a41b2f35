// Package dev populates a jail's /dev once Mount has finished laying
// down the tmpfs and devpts instance. Grounded on the teacher's
// containerMknodDevices/containerSymlinks/containerPtmx in
// cmd/minimega/container.go, which builds the same node/symlink set
// while running as host root; this package bind-mounts the host's nodes
// in instead of calling mknod, since an unprivileged user namespace
// can't create device nodes of its own.
package dev

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
)

// bindDevices lists the device nodes bind-mounted from the host into
// the jail's fresh /dev, per spec.md 4.5.
var bindDevices = []string{
	"console",
	"tty",
	"full",
	"null",
	"zero",
	"random",
	"urandom",
}

// symlinks maps jail-relative /dev entries to the /proc path they point
// at, mirroring containerLinks in the teacher.
var symlinks = map[string]string{
	"core":   "/proc/kcore",
	"fd":     "/proc/self/fd",
	"stdin":  "/proc/self/fd/0",
	"stdout": "/proc/self/fd/1",
	"stderr": "/proc/self/fd/2",
}

// Setup populates root/dev: the ptmx symlink, bind-mounted device nodes,
// and the /proc-backed symlinks. Must run after Mount.Apply has put a
// tmpfs on /dev and a devpts instance on /dev/pts.
func Setup(root string) error {
	devDir := filepath.Join(root, "dev")

	ptmx := filepath.Join(devDir, "ptmx")
	os.Remove(ptmx)
	if err := os.Symlink("pts/ptmx", ptmx); err != nil {
		return jailerr.Systemf("dev.Setup: ptmx symlink", err)
	}

	oldmask := unix.Umask(0)
	defer unix.Umask(oldmask)

	for _, name := range bindDevices {
		dst := filepath.Join(devDir, name)
		f, err := os.OpenFile(dst, os.O_CREATE, 0666)
		if err != nil {
			return jailerr.Systemf("dev.Setup: create "+name, err)
		}
		f.Close()

		src := filepath.Join("/dev", name)
		if err := unix.Mount(src, dst, "", unix.MS_BIND, ""); err != nil {
			return jailerr.Systemf("dev.Setup: bind "+name, err)
		}
	}

	for name, target := range symlinks {
		link := filepath.Join(devDir, name)
		os.Remove(link)
		if err := os.Symlink(target, link); err != nil {
			return jailerr.Systemf("dev.Setup: symlink "+name, err)
		}
	}

	return nil
}
