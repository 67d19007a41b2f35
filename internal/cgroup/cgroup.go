// Package cgroup creates and tears down one cgroup subtree per
// controller for a jail, enrolling the target pid into each. Grounded
// on containerPopulateCgroups in cmd/minimega/container.go, which
// mkdirs a per-controller subtree and writes the pid into its tasks
// file; simplified here to the single create/enroll/destroy lifecycle
// spec.md 4.8 describes, without minimega's CPU-quota/device-allowlist
// tuning.
package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ghedo/jail/internal/jailerr"
	"github.com/ghedo/jail/internal/jaillog"
)

const base = "/sys/fs/cgroup"

// List is the ordered set of controllers a jail should be enrolled
// into, e.g. {"cpu", "memory"} or {"unified"} for cgroup v2.
type List struct {
	controllers []string
}

// NewList returns an empty controller list.
func NewList() *List {
	return &List{}
}

// Add appends a controller name.
func (l *List) Add(controller string) {
	l.controllers = append(l.controllers, controller)
}

// groupName derives the per-jail subtree name, e.g. "jail.4217".
func groupName(pid int) string {
	return "jail." + strconv.Itoa(pid)
}

// path returns the subtree path for a given controller and pid.
func path(controller string, pid int) string {
	return filepath.Join(base, controller, groupName(pid))
}

// Setup creates a subtree under each controller and writes pid into its
// tasks file. Any failure here is fatal to the jail.
func (l *List) Setup(pid int) error {
	for _, controller := range l.controllers {
		group := path(controller, pid)
		if err := os.MkdirAll(group, 0755); err != nil {
			return jailerr.Systemf(fmt.Sprintf("cgroup.Setup: mkdir %s", group), err)
		}

		tasks := filepath.Join(group, "tasks")
		if err := os.WriteFile(tasks, []byte(strconv.Itoa(pid)), 0644); err != nil {
			return jailerr.Systemf(fmt.Sprintf("cgroup.Setup: enroll in %s", group), err)
		}
	}
	return nil
}

// Clean removes every subtree created by Setup. Failures are logged and
// swallowed, matching spec.md's "failures at cleanup are logged and
// swallowed" (the kernel won't rmdir a group with a living task anyway,
// and the jail is already reaped by the time this runs).
func (l *List) Clean(pid int) {
	for _, controller := range l.controllers {
		group := path(controller, pid)
		if err := os.Remove(group); err != nil && !os.IsNotExist(err) {
			jaillog.Warn("cgroup.Clean: rmdir %s: %v", group, err)
		}
	}
}
