// Package usermap builds uid/gid mapping lists for a user namespace and
// applies them via newuidmap/newgidmap, or direct /proc writes when
// running as host root. Grounded on spec.md 4.6 and
// original_source/src/user.c's probe-then-fallback ordering; the
// teacher carries no equivalent since minimega containers always run as
// host root and never map ids.
package usermap

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
	"github.com/ghedo/jail/internal/pathops"
)

// Kind identifies which of the two id spaces an Entry maps.
type Kind int

const (
	UID Kind = iota
	GID
)

func (k Kind) String() string {
	if k == UID {
		return "u"
	}
	return "g"
}

// Entry is one contiguous range mapped from a container id to a host id.
type Entry struct {
	Kind        Kind
	ContainerID int
	HostID      int
	Count       int
}

// Maps holds the ordered uid and gid mapping lists built during argument
// parsing; entries keep insertion order within each kind.
type Maps struct {
	entries []Entry
}

// NewMaps returns an empty set of id maps.
func NewMaps() *Maps {
	return &Maps{}
}

// Add appends one mapping entry.
func (m *Maps) Add(kind Kind, containerID, hostID, count int) {
	m.entries = append(m.entries, Entry{Kind: kind, ContainerID: containerID, HostID: hostID, Count: count})
}

// Entries returns every mapping entry, in insertion order.
func (m *Maps) Entries() []Entry {
	return m.entries
}

func (m *Maps) byKind(kind Kind) []Entry {
	var out []Entry
	for _, e := range m.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// GetUidGid resolves a user name to (uid, gid); "root" is special-cased
// to (0, 0) without a passwd lookup, matching the original's fast path.
func GetUidGid(name string) (int, int, error) {
	if name == "root" {
		return 0, 0, nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, jailerr.Systemf("usermap.GetUidGid", err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, jailerr.Systemf("usermap.GetUidGid: parse uid", err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, jailerr.Systemf("usermap.GetUidGid: parse gid", err)
	}

	return uid, gid, nil
}

// Apply installs the maps onto pid. It prefers the setuid newuidmap/
// newgidmap helpers (needed when unprivileged, since only they can
// straddle an arbitrary id range on the caller's behalf); absent those,
// it falls back to writing /proc/<pid>/{uid,gid}_map directly, which
// requires euid 0.
func (m *Maps) Apply(pid int) error {
	uidHelper, haveUID := pathops.OnPath("newuidmap", "")
	gidHelper, haveGID := pathops.OnPath("newgidmap", "")

	if haveUID && haveGID {
		if err := runIDMapHelper(uidHelper, pid, m.byKind(UID)); err != nil {
			return err
		}
		return runIDMapHelper(gidHelper, pid, m.byKind(GID))
	}

	if os.Geteuid() != 0 {
		return jailerr.Configf("usermap.Apply",
			"unprivileged and newuidmap/newgidmap not found on PATH")
	}

	if err := os.WriteFile(fmt.Sprintf("/proc/%d/setgroups", pid), []byte("deny"), 0644); err != nil {
		return jailerr.Systemf("usermap.Apply: setgroups", err)
	}
	if err := writeProcMap(pid, "uid_map", m.byKind(UID)); err != nil {
		return err
	}
	return writeProcMap(pid, "gid_map", m.byKind(GID))
}

func runIDMapHelper(helper string, pid int, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	args := []string{strconv.Itoa(pid)}
	for _, e := range entries {
		args = append(args, strconv.Itoa(e.ContainerID), strconv.Itoa(e.HostID), strconv.Itoa(e.Count))
	}
	cmd := exec.Command(helper, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return jailerr.Systemf(fmt.Sprintf("usermap.Apply: %s", helper), err)
	}
	return nil
}

func writeProcMap(pid int, file string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d %d %d\n", e.ContainerID, e.HostID, e.Count)
	}
	path := fmt.Sprintf("/proc/%d/%s", pid, file)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return jailerr.Systemf("usermap.Apply: write "+file, err)
	}
	return nil
}

// SetupUser drops into name's uid/gid and clears ancillary groups; run
// on the child side after the parent has installed the id maps.
func SetupUser(name string) error {
	uid, gid, err := GetUidGid(name)
	if err != nil {
		return err
	}

	if err := unix.Setresgid(gid, gid, gid); err != nil {
		return jailerr.Systemf("usermap.SetupUser: setresgid", err)
	}
	if err := unix.Setresuid(uid, uid, uid); err != nil {
		return jailerr.Systemf("usermap.SetupUser: setresuid", err)
	}
	if err := unix.Setgroups(nil); err != nil {
		return jailerr.Systemf("usermap.SetupUser: setgroups", err)
	}

	return nil
}
