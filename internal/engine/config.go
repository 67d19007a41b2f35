package engine

import "github.com/ghedo/jail/internal/usermap"

// Config is the immutable set of choices built up during argument
// parsing and carried, as-is, across the re-exec boundary to the child
// (JSON-encoded over an inherited pipe — see Run/ShimMain). Every
// collection is kept as raw spec strings or exported entries rather than
// the parsed List/Maps types themselves, since those keep their
// internals unexported; the child re-parses them with the very same
// Add/Parse calls the parent used, so both sides build identical state
// from identical input.
type Config struct {
	Rootfs     string
	Ephemeral  bool
	ScratchDir string

	Hostname string
	User     string
	Chdir    string

	Command []string
	SetEnv  map[string]string
	KeepEnv bool

	Detach bool

	// NewUser and NewNet are derived from whether any --user-map/--netif
	// was given, already folded together with --no-userns/--no-netns by
	// the time Config is built.
	NewUser bool
	NewNet  bool

	// The remaining four namespaces are on by default; --no-{mount,ipc,
	// uts,pid}ns forces the corresponding clone flag off.
	NoMountNS bool
	NoIpcNS   bool
	NoUtsNS   bool
	NoPidNS   bool

	MachineReg bool

	MountSpecs   []string
	NetifSpecs   []string
	CgroupCtrls  []string
	CapTokens    []string
	IDMapEntries []usermap.Entry
}
