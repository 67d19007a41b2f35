package engine

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCloneFlagsBase(t *testing.T) {
	flags := cloneFlags(&Config{})
	want := uintptr(unix.CLONE_NEWNS | unix.CLONE_NEWIPC | unix.CLONE_NEWPID | unix.CLONE_NEWUTS)
	if flags != want {
		t.Fatalf("got %#x, want %#x", flags, want)
	}
	if flags&unix.CLONE_NEWUSER != 0 {
		t.Fatal("NEWUSER set without NewUser")
	}
	if flags&unix.CLONE_NEWNET != 0 {
		t.Fatal("NEWNET set without NewNet")
	}
}

func TestCloneFlagsUserAndNet(t *testing.T) {
	flags := cloneFlags(&Config{NewUser: true, NewNet: true})
	if flags&unix.CLONE_NEWUSER == 0 {
		t.Fatal("expected NEWUSER")
	}
	if flags&unix.CLONE_NEWNET == 0 {
		t.Fatal("expected NEWNET")
	}
}

func TestCloneFlagsNoNSMasksApply(t *testing.T) {
	flags := cloneFlags(&Config{NoMountNS: true, NoIpcNS: true, NoUtsNS: true, NoPidNS: true})
	if flags != 0 {
		t.Fatalf("expected all base flags masked off, got %#x", flags)
	}
}

func TestIsEINVAL(t *testing.T) {
	err := &os.SyscallError{Syscall: "clone", Err: unix.Errno(unix.EINVAL)}
	if !isEINVAL(err) {
		t.Fatal("expected EINVAL to be recognized")
	}

	other := &os.SyscallError{Syscall: "clone", Err: unix.Errno(unix.EPERM)}
	if isEINVAL(other) {
		t.Fatal("did not expect EPERM to be recognized as EINVAL")
	}

	if isEINVAL(nil) {
		t.Fatal("did not expect nil error to be recognized as EINVAL")
	}
}

func TestBuildEnvResetsOnChroot(t *testing.T) {
	cfg := &Config{
		Rootfs: "/var/jail/root",
		User:   "alice",
		SetEnv: map[string]string{"FOO": "bar"},
	}

	env := buildEnv(cfg)

	found := map[string]bool{}
	for _, kv := range env {
		found[kv] = true
	}

	if !found["USER=alice"] {
		t.Errorf("expected USER=alice in %v", env)
	}
	if !found["FOO=bar"] {
		t.Errorf("expected FOO=bar in %v", env)
	}
	if !found["container=jail"] {
		t.Errorf("expected container=jail in %v", env)
	}
	if !found["PATH=/usr/sbin:/usr/bin:/sbin:/bin"] {
		t.Errorf("expected reset PATH in %v", env)
	}
}

func TestBuildEnvKeepsCallerEnvWhenRequested(t *testing.T) {
	os.Setenv("JAIL_TEST_MARKER", "1")
	defer os.Unsetenv("JAIL_TEST_MARKER")

	cfg := &Config{
		Rootfs:  "/var/jail/root",
		KeepEnv: true,
	}

	env := buildEnv(cfg)

	found := false
	for _, kv := range env {
		if kv == "JAIL_TEST_MARKER=1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected caller env to survive with --keepenv, got %v", env)
	}
}

func TestBuildEnvNoRootfsKeepsCallerEnv(t *testing.T) {
	os.Setenv("JAIL_TEST_MARKER2", "1")
	defer os.Unsetenv("JAIL_TEST_MARKER2")

	cfg := &Config{}
	env := buildEnv(cfg)

	found := false
	for _, kv := range env {
		if kv == "JAIL_TEST_MARKER2=1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected caller env without a rootfs, got %v", env)
	}
}
