// Package mount parses the jail's mount-spec grammar into an ordered
// list of entries and applies them inside the child's fresh mount
// namespace. Grounded on the teacher's containerSetupRoot/
// containerMountDefaults/containerRemountReadOnly family in
// cmd/minimega/container.go, which builds the same standard set
// (proc, dev, devpts, sysfs) with mkdirMount before chroot; generalized
// here to also carry user-supplied bind/overlay/tmpfs entries and an
// ephemeral overlay root.
package mount

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/jailerr"
	"github.com/ghedo/jail/internal/pathops"
)

// Kind identifies what sort of mount an Entry describes.
type Kind int

const (
	Bind Kind = iota
	BindRO
	Overlay
	Tmp
	Proc
	BindRec
	RemountBindRO
	Devpts
	Cgroup2
)

// OverlayData holds the upper/lower/work triad and the union filesystem
// kind used to build the options string at apply time, once the
// destination has been resolved against the target root.
type OverlayData struct {
	Upper string
	Lower string
	Work  string
	Aufs  bool // kind == "aufs" instead of "overlay"
}

// Entry is one mount to perform once inside the child's namespace.
type Entry struct {
	Source  string
	Dest    string
	Kind    Kind
	Flags   uintptr
	Data    string
	Overlay *OverlayData
}

// List is the ordered, in-insertion-order sequence of user-specified
// mount entries built during argument parsing.
type List struct {
	entries []Entry
}

// NewList returns an empty mount list.
func NewList() *List {
	return &List{}
}

// Entries returns the entries added so far, in insertion order.
func (l *List) Entries() []Entry {
	return l.entries
}

// Add parses one colon-separated mount spec and appends it.
//
// Grammar: bind:SRC:DST | bind-ro:SRC:DST | overlay:UPPER:DST:WORK | tmp:DST
func (l *List) Add(spec string) error {
	fields := strings.Split(spec, ":")
	if len(fields) == 0 {
		return jailerr.Usagef("mount.Add", "empty mount spec")
	}

	switch fields[0] {
	case "bind", "bind-ro":
		if len(fields) != 3 {
			return jailerr.Usagef("mount.Add", "%q: want bind:SRC:DST", spec)
		}
		src, dst := fields[1], fields[2]
		if !pathops.IsAbsolute(src) || !pathops.IsAbsolute(dst) {
			return jailerr.Usagef("mount.Add", "%q: src and dst must be absolute", spec)
		}
		kind := Bind
		flags := uintptr(unix.MS_BIND)
		if fields[0] == "bind-ro" {
			kind = BindRO
		}
		l.entries = append(l.entries, Entry{Source: src, Dest: dst, Kind: kind, Flags: flags})

	case "overlay":
		if len(fields) != 4 {
			return jailerr.Usagef("mount.Add", "%q: want overlay:UPPER:DST:WORK", spec)
		}
		upper, dst, work := fields[1], fields[2], fields[3]
		if !pathops.IsAbsolute(upper) || !pathops.IsAbsolute(dst) || !pathops.IsAbsolute(work) {
			return jailerr.Usagef("mount.Add", "%q: upper/dst/work must be absolute", spec)
		}
		if upper == work || upper == dst || work == dst {
			return jailerr.Usagef("mount.Add", "%q: upper/work/dst must not share a path", spec)
		}
		l.entries = append(l.entries, Entry{
			Dest: dst,
			Kind: Overlay,
			Overlay: &OverlayData{
				Upper: upper,
				Work:  work,
			},
		})

	case "tmp":
		if len(fields) != 2 {
			return jailerr.Usagef("mount.Add", "%q: want tmp:DST", spec)
		}
		dst := fields[1]
		if !pathops.IsAbsolute(dst) {
			return jailerr.Usagef("mount.Add", "%q: dst must be absolute", spec)
		}
		l.entries = append(l.entries, Entry{Dest: dst, Kind: Tmp, Flags: uintptr(unix.MS_NOSUID | unix.MS_NODEV)})

	default:
		return jailerr.Usagef("mount.Add", "%q: unknown mount type %q", spec, fields[0])
	}

	return nil
}

// standardSet returns the fixed entries every jail gets, in the order
// spec.md 4.4 lists them, before any user entries.
func standardSet(root string) []Entry {
	return []Entry{
		{Dest: "/proc", Kind: Proc, Flags: uintptr(unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV)},
		{Source: pathops.PrefixRoot(root, "/proc/sys"), Dest: "/proc/sys", Kind: Bind, Flags: uintptr(unix.MS_BIND)},
		{Dest: "/proc/sys", Kind: RemountBindRO, Flags: uintptr(unix.MS_BIND | unix.MS_RDONLY | unix.MS_REMOUNT)},
		{Source: "/sys", Dest: "/sys", Kind: BindRec, Flags: uintptr(unix.MS_REC | unix.MS_BIND | unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC)},
		{Dest: "/dev", Kind: Tmp, Data: "mode=755", Flags: uintptr(unix.MS_NOSUID | unix.MS_STRICTATIME)},
		{Dest: "/dev/pts", Kind: Devpts, Data: "newinstance,ptmxmode=0666,mode=0620,gid=5"},
		{Dest: "/dev/shm", Kind: Tmp, Data: "mode=1777"},
		{Dest: "/run", Kind: Tmp, Data: "mode=755"},
		{Dest: "/sys/fs/cgroup", Kind: Cgroup2},
	}
}

// ephemeralOverlay builds the entry that layers a fresh tmpfs over the
// whole target root, used when the caller asked for an ephemeral jail.
func ephemeralOverlay(root, scratch string) (Entry, []Entry, error) {
	rootDir := scratch + "/root"
	workDir := scratch + "/work"

	tmpfs := Entry{Dest: scratch, Kind: Tmp}

	overlay := Entry{
		Dest: "/",
		Kind: Overlay,
		Overlay: &OverlayData{
			Upper: rootDir,
			Work:  workDir,
			Lower: root,
		},
	}

	return tmpfs, []Entry{overlay}, nil
}

// Apply performs the remount-slave step, then mounts the ephemeral
// overlay (if scratch is non-empty), the standard set, and finally the
// user list, in that order, against root.
func Apply(root string, list *List, scratch string) error {
	if err := unix.Mount("", "/", "", unix.MS_SLAVE|unix.MS_REC, ""); err != nil {
		return jailerr.Systemf("mount.Apply: remount /", err)
	}

	var ordered []Entry

	if scratch != "" {
		tmpfs, overlayEntries, err := ephemeralOverlay(root, scratch)
		if err != nil {
			return err
		}
		if err := applyOne("", tmpfs); err != nil {
			return err
		}
		if err := os.MkdirAll(overlayEntries[0].Overlay.Upper, 0755); err != nil {
			return jailerr.Systemf("mount.Apply: mkdir overlay upper", err)
		}
		if err := os.MkdirAll(overlayEntries[0].Overlay.Work, 0755); err != nil {
			return jailerr.Systemf("mount.Apply: mkdir overlay work", err)
		}
		ordered = append(ordered, overlayEntries...)
	}

	ordered = append(ordered, standardSet(root)...)
	ordered = append(ordered, list.Entries()...)

	for _, e := range ordered {
		if err := applyOne(root, e); err != nil {
			return err
		}
	}

	return nil
}

func applyOne(root string, e Entry) error {
	dst := pathops.PrefixRoot(root, e.Dest)

	if err := ensureDest(dst, e); err != nil {
		return err
	}

	defaultOverlayLower(dst, e)

	src, fstype, data := resolve(root, dst, e)

	if err := unix.Mount(src, dst, fstype, e.Flags, data); err != nil {
		return jailerr.Systemf("mount.Apply", fmt.Errorf("mount %s -> %s (%s): %w", src, dst, fstype, err))
	}

	if e.Kind == BindRO {
		if err := unix.Mount("", dst, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return jailerr.Systemf("mount.Apply", fmt.Errorf("remount ro %s: %w", dst, err))
		}
	}

	return nil
}

// defaultOverlayLower fills in a user-specified overlay's lower layer
// with the resolved destination when the caller left it unset: the
// destination's pre-existing content (possibly just created empty by
// ensureDest) stands in for it, the same way ephemeralOverlay layers the
// scratch upper over the original root.
func defaultOverlayLower(dst string, e Entry) {
	if e.Kind == Overlay && !e.Overlay.Aufs && e.Overlay.Lower == "" {
		e.Overlay.Lower = dst
	}
}

func resolve(root, dst string, e Entry) (src, fstype, data string) {
	switch e.Kind {
	case Bind, BindRO, BindRec:
		return e.Source, "", e.Data
	case RemountBindRO:
		return "", "", ""
	case Proc:
		return "proc", "proc", e.Data
	case Tmp:
		return "tmpfs", "tmpfs", e.Data
	case Devpts:
		return "devpts", "devpts", e.Data
	case Cgroup2:
		return "cgroup2", "cgroup2", e.Data
	case Overlay:
		if e.Overlay.Aufs {
			return "none", "aufs", fmt.Sprintf("br:%s=rw:%s=ro", e.Overlay.Upper, e.Overlay.Lower)
		}
		return "overlay", "overlay", fmt.Sprintf("upperdir=%s,lowerdir=%s,workdir=%s",
			e.Overlay.Upper, e.Overlay.Lower, e.Overlay.Work)
	default:
		return e.Source, "", e.Data
	}
}

// ensureDest makes sure the mount destination exists as the right kind
// of filesystem object before the mount(2) call runs.
func ensureDest(dst string, e Entry) error {
	switch e.Kind {
	case Overlay, Tmp, Proc, Devpts, Cgroup2, BindRec:
		if err := os.MkdirAll(dst, 0755); err != nil {
			return jailerr.Systemf("mount.ensureDest", err)
		}
		return nil
	case RemountBindRO:
		return nil
	case Bind, BindRO:
		info, err := os.Stat(e.Source)
		if err != nil {
			return jailerr.Systemf("mount.ensureDest: stat source", err)
		}
		if info.IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil && !os.IsExist(err) {
				return jailerr.Systemf("mount.ensureDest: mkdir", err)
			}
			return nil
		}
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			f, ferr := os.OpenFile(dst, os.O_CREATE, 0644)
			if ferr != nil {
				return jailerr.Systemf("mount.ensureDest: create", ferr)
			}
			f.Close()
		}
		return nil
	}
	return nil
}
