package engine

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/ghedo/jail/internal/caps"
	"github.com/ghedo/jail/internal/dev"
	"github.com/ghedo/jail/internal/jaillog"
	"github.com/ghedo/jail/internal/mount"
	"github.com/ghedo/jail/internal/netif"
	"github.com/ghedo/jail/internal/pathops"
	"github.com/ghedo/jail/internal/syncchan"
	"github.com/ghedo/jail/internal/usermap"
)

const configFd = 4 // fd 3 is the sync socket, extra files start at 3

// ShimMain is the re-exec'd child's entry point (spec.md 4.12 step 7).
// It never returns on success: the final step execs the requested
// program. cmd/jail's main dispatches here when os.Args[1] == ShimArg.
func ShimMain() {
	cfg, err := readConfig(os.NewFile(uintptr(configFd), "jail-config"))
	if err != nil {
		jaillog.Fatal("shim: read config: %v", err)
	}

	pair := syncchan.FromInheritedFd(3)

	unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0)

	if err := pair.Barrier(syncchan.Child, syncchan.Start); err != nil {
		jaillog.Fatal("shim: barrier: %v", err)
	}
	pair.CloseChild()

	user := cfg.User
	if user == "" {
		user = "root"
	}
	if err := usermap.SetupUser(user); err != nil {
		jaillog.Fatal("shim: setup user: %v", err)
	}

	if cfg.Hostname != "" {
		if err := unix.Sethostname([]byte(cfg.Hostname)); err != nil {
			jaillog.Fatal("shim: sethostname: %v", err)
		}
	}

	mounts := mount.NewList()
	for _, spec := range cfg.MountSpecs {
		if err := mounts.Add(spec); err != nil {
			jaillog.Fatal("shim: parse mount: %v", err)
		}
	}
	if err := mount.Apply(cfg.Rootfs, mounts, cfg.ScratchDir); err != nil {
		jaillog.Fatal("shim: mount apply: %v", err)
	}

	if cfg.Rootfs != "" {
		if err := dev.Setup(cfg.Rootfs); err != nil {
			jaillog.Fatal("shim: dev setup: %v", err)
		}

		if err := unix.Chdir(cfg.Rootfs); err != nil {
			jaillog.Fatal("shim: chdir rootfs: %v", err)
		}
		if err := unix.Chroot("."); err != nil {
			jaillog.Fatal("shim: chroot: %v", err)
		}
		if err := unix.Chdir("/"); err != nil {
			jaillog.Fatal("shim: chdir /: %v", err)
		}
	}

	if cfg.NewNet {
		if err := netif.LoopbackUp(); err != nil {
			jaillog.Warn("shim: loopback up: %v", err)
		}
	}

	unix.Umask(0022)

	if len(cfg.CapTokens) > 0 {
		capList, err := caps.Parse(cfg.CapTokens)
		if err != nil {
			jaillog.Fatal("shim: parse caps: %v", err)
		}
		if err := capList.Apply(os.Getpid()); err != nil {
			jaillog.Fatal("shim: apply caps: %v", err)
		}
	}

	if cfg.Chdir != "" {
		if err := unix.Chdir(cfg.Chdir); err != nil {
			jaillog.Fatal("shim: chdir: %v", err)
		}
	}

	env := buildEnv(cfg)

	argv := cfg.Command
	if len(argv) == 0 {
		argv = []string{"/bin/bash", "-bash"}
	}

	path, ok := pathops.OnPath(argv[0], "")
	if !ok {
		path = argv[0]
	}

	err = unix.Exec(path, argv, env)
	jaillog.Fatal("shim: exec %v: %v", argv, err)
}

// buildEnv resets the environment to a minimal set when chrooted (unless
// --keepenv was given), then layers --setenv pairs and the container
// marker on top.
func buildEnv(cfg *Config) []string {
	var env []string

	if cfg.Rootfs != "" && !cfg.KeepEnv {
		term := os.Getenv("TERM")
		if term == "" {
			term = "xterm"
		}
		user := cfg.User
		if user == "" {
			user = "root"
		}
		env = []string{
			"PATH=/usr/sbin:/usr/bin:/sbin:/bin",
			"USER=" + user,
			"LOGNAME=" + user,
			"TERM=" + term,
		}
	} else {
		env = os.Environ()
	}

	for k, v := range cfg.SetEnv {
		env = append(env, k+"="+v)
	}

	env = append(env, "container=jail")

	return env
}
