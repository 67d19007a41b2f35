// Command jail launches a process into a fresh set of Linux namespaces,
// the way cmd/minimega launches container VMs, generalized to a
// standalone jailer rather than one piece of a larger orchestrator.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/ghedo/jail/internal/dev"
	"github.com/ghedo/jail/internal/engine"
	"github.com/ghedo/jail/internal/jaillog"
	"github.com/ghedo/jail/internal/pty"
	"github.com/ghedo/jail/internal/usermap"
)

const banner = `jail - process jailer built on Linux namespaces`

// stringList is a flag.Value accumulator for repeatable flags such as
// --mount and --netif, each occurrence appended in order.
type stringList struct {
	values []string
}

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%v", s.values)
}

func (s *stringList) Set(v string) error {
	s.values = append(s.values, v)
	return nil
}

// kvList is a flag.Value accumulator for repeatable KEY=VALUE flags
// (--setenv), collected into a map.
type kvList struct {
	values map[string]string
}

func (k *kvList) String() string {
	if k == nil {
		return ""
	}
	return fmt.Sprintf("%v", k.values)
}

func (k *kvList) Set(v string) error {
	if k.values == nil {
		k.values = make(map[string]string)
	}
	for i := 0; i < len(v); i++ {
		if v[i] == '=' {
			k.values[v[:i]] = v[i+1:]
			return nil
		}
	}
	return fmt.Errorf("expected KEY=VALUE, got %q", v)
}

var (
	fChroot     = flag.String("chroot", "", "directory to use as the jail's new root")
	fEphemeral  = flag.Bool("ephemeral", false, "overlay an ephemeral scratch directory on top of --chroot")
	fHostname   = flag.String("hostname", "", "hostname to set inside the UTS namespace")
	fUser       = flag.String("user", "", "user to switch to inside the jail (default root)")
	fChdir      = flag.String("chdir", "", "directory to chdir into before exec, inside the jail")
	fKeepEnv    = flag.Bool("keepenv", false, "keep the caller's environment instead of resetting it on chroot")
	fDetach     = flag.Bool("detach", false, "daemonize and detach the console; reattach with --attach")
	fAttach     = flag.Int("attach", 0, "attach to the console of a running, detached jail by pid")
	fCaps       = flag.String("caps", "", "comma-separated capability action sequence, e.g. -all,+net_bind_service")
	fMachineReg = flag.Bool("register", false, "register the jail with systemd-machined")
	fLogLevel   = flag.String("log-level", "warn", "minimum log level: debug, info, warn, error, fatal")

	fNoUserNS  = flag.Bool("no-userns", false, "don't unshare a user namespace even if --user-map was given")
	fNoMountNS = flag.Bool("no-mountns", false, "don't unshare a mount namespace")
	fNoNetNS   = flag.Bool("no-netns", false, "don't unshare a network namespace even if --netif was given")
	fNoIpcNS   = flag.Bool("no-ipcns", false, "don't unshare an IPC namespace")
	fNoUtsNS   = flag.Bool("no-utsns", false, "don't unshare a UTS namespace")
	fNoPidNS   = flag.Bool("no-pidns", false, "don't unshare a PID namespace")

	fMounts   stringList
	fNetifs   stringList
	fCgroups  stringList
	fUserMaps stringList
	fSetEnv   kvList
)

func init() {
	flag.Var(&fMounts, "mount", "extra mount, as bind:SRC:DST, bind-ro:SRC:DST, overlay:UPPER:DST:WORK, or tmp:DST (repeatable)")
	flag.Var(&fNetifs, "netif", "network interface to set up, as DEV,NAME, macvlan,MASTER,NAME, ipvlan,MASTER,NAME, or veth,HOSTEND,CONTEND; implies a network namespace (repeatable)")
	flag.Var(&fCgroups, "cgroup", "cgroup controller to join (repeatable)")
	flag.Var(&fUserMaps, "user-map", "id:host_id:count, added to both the uid and gid maps; implies a user namespace (repeatable)")
	flag.Var(&fSetEnv, "setenv", "environment variable to set inside the jail, as KEY=VALUE (repeatable)")
}

func usage() {
	fmt.Println(banner)
	fmt.Println("usage: jail [options] [--] [command [args...]]")
	flag.PrintDefaults()
}

func main() {
	// Dispatch for the re-exec'd helper roles before touching flag
	// parsing: each is invoked with its own argv shape, not the
	// user-facing CLI.
	args := os.Args[1:]
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case engine.ShimArg:
			engine.ShimMain()
			return
		case dev.HelperArg:
			if err := dev.RunConsoleOwnerHelper(os.Args[2:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case engine.DaemonizedMarker:
			// Re-exec'd by Daemonize; parse flags from after the marker
			// so it doesn't get swept into flag.Args() as a bogus
			// command, but leave it in os.Args where Daemonize looks.
			args = os.Args[2:]
		}
	}

	flag.Usage = usage
	flag.CommandLine.Parse(args)

	level, err := jaillog.ParseLevel(*fLogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	jaillog.AddLogger("stderr", os.Stderr, level, true)
	if *fDetach {
		if err := jaillog.AddSyslog("jail", level); err != nil {
			jaillog.Warn("jail: syslog: %v", err)
		}
	}

	if *fAttach != 0 {
		os.Exit(runAttach(*fAttach))
	}

	cfg, err := buildConfig()
	if err != nil {
		jaillog.Fatal("jail: %v", err)
	}

	code, err := engine.Run(cfg)
	if err != nil {
		jaillog.Error("jail: %v", err)
	}
	os.Exit(code)
}

func buildConfig() (*engine.Config, error) {
	entries, err := parseIDMaps(fUserMaps.values)
	if err != nil {
		return nil, err
	}

	cfg := &engine.Config{
		Rootfs:       *fChroot,
		Ephemeral:    *fEphemeral,
		Hostname:     *fHostname,
		User:         *fUser,
		Chdir:        *fChdir,
		KeepEnv:      *fKeepEnv,
		Detach:       *fDetach,
		NewUser:      len(entries) > 0 && !*fNoUserNS,
		NewNet:       len(fNetifs.values) > 0 && !*fNoNetNS,
		NoMountNS:    *fNoMountNS,
		NoIpcNS:      *fNoIpcNS,
		NoUtsNS:      *fNoUtsNS,
		NoPidNS:      *fNoPidNS,
		MachineReg:   *fMachineReg,
		Command:      flag.Args(),
		SetEnv:       fSetEnv.values,
		MountSpecs:   fMounts.values,
		NetifSpecs:   fNetifs.values,
		CgroupCtrls:  fCgroups.values,
		CapTokens:    splitCaps(*fCaps),
		IDMapEntries: entries,
	}

	if cfg.Ephemeral && cfg.Rootfs == "" {
		return nil, fmt.Errorf("--ephemeral requires --chroot")
	}

	return cfg, nil
}

// splitCaps turns the comma-separated --caps value into the token list
// caps.Parse expects, dropping empty fields so a bare "--caps=" is a
// no-op rather than a parse error.
func splitCaps(spec string) []string {
	if spec == "" {
		return nil
	}
	var tokens []string
	for _, t := range strings.Split(spec, ",") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// runAttach reattaches this process's stdio to the console of a
// detached jail identified by pid, pumping I/O until the remote end
// closes. Unlike the owning instance's Master.Pump, an attached viewer
// isn't the console's parent and can't waitid on pid, so this is a
// plain bidirectional copy rather than the full signal-aware pump.
func runAttach(pid int) int {
	master, err := pty.Attach(pid)
	if err != nil {
		jaillog.Error("jail: attach: %v", err)
		return 1
	}
	defer master.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		state, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			defer term.Restore(int(os.Stdin.Fd()), state)
		}
	}

	go io.Copy(master, os.Stdin)
	io.Copy(os.Stdout, master)

	return 0
}

// parseIDMaps builds the uid+gid map entry list from the --user-map
// flag's values, each formatted as CONTAINERID:HOSTID:COUNT and added
// to both id spaces identically.
func parseIDMaps(specs []string) ([]usermap.Entry, error) {
	var entries []usermap.Entry

	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("user map entry %q: expected CONTAINERID:HOSTID:COUNT", spec)
		}

		containerID, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("user map entry %q: bad container id: %v", spec, err)
		}
		hostID, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("user map entry %q: bad host id: %v", spec, err)
		}
		count, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("user map entry %q: bad count: %v", spec, err)
		}

		entries = append(entries,
			usermap.Entry{Kind: usermap.UID, ContainerID: containerID, HostID: hostID, Count: count},
			usermap.Entry{Kind: usermap.GID, ContainerID: containerID, HostID: hostID, Count: count},
		)
	}

	return entries, nil
}
