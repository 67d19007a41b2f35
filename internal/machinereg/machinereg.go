// Package machinereg optionally registers a jail with the host's
// systemd-machined over D-Bus, so tools like machinectl can see it. The
// teacher never does this (minimega containers aren't meant to show up
// as systemd machines); grounded directly on spec.md 4.11 and
// original_source/src/machine.c's CreateMachine call, carried over
// idiomatically via github.com/godbus/dbus/v5 instead of libsystemd's
// sd-bus.
package machinereg

import (
	"strconv"

	"github.com/godbus/dbus/v5"

	"github.com/ghedo/jail/internal/jaillog"
)

const (
	busName       = "org.freedesktop.machine1"
	busPath       = "/org/freedesktop/machine1"
	createMachine = "org.freedesktop.machine1.Manager.CreateMachine"
)

// Register makes a best-effort one-shot CreateMachine call naming the
// jail after its pid and chroot directory. All errors are non-fatal:
// the bus may not exist, machined may not be running, or the call may
// simply be refused, none of which should abort the jail.
func Register(pid int, root string) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		jaillog.Debug("machinereg: connect: %v", err)
		return
	}
	defer conn.Close()

	name := "jail-" + strconv.Itoa(pid)
	uuid := make([]byte, 16)

	obj := conn.Object(busName, dbus.ObjectPath(busPath))
	call := obj.Call(createMachine, 0,
		name,
		uuid,
		"jail",
		"container",
		uint32(pid),
		root,
		[]struct {
			Name  string
			Value dbus.Variant
		}{},
	)

	if call.Err != nil {
		jaillog.Debug("machinereg: CreateMachine: %v", call.Err)
	}
}

