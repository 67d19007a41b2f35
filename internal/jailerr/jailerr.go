// Package jailerr defines the error kinds produced across the jailer: usage
// mistakes, failed syscalls, sync-protocol violations, and configuration
// that can't be satisfied with the privileges available.
package jailerr

import "fmt"

// Kind categorizes an error for exit-status and decoration purposes.
type Kind int

const (
	// Usage covers malformed CLI input: unknown options, non-absolute
	// paths where one is required, unknown capability/netif/mount types.
	Usage Kind = iota
	// System covers a failed syscall.
	System
	// Protocol covers a sync-channel mismatch or unexpected netlink ack.
	Protocol
	// Config covers a request that privilege or kernel support can't
	// satisfy, e.g. unprivileged id-mapping without newuidmap.
	Config
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "usage"
	case System:
		return "system"
	case Protocol:
		return "protocol"
	case Config:
		return "config"
	default:
		return "error"
	}
}

// Error is a kinded, wrappable error. All four kinds from the design are
// fatal to the caller except where a component documents a best-effort
// exception (cgroup cleanup, ephemeral directory removal).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// Usagef builds a Usage-kind error.
func Usagef(op, format string, a ...interface{}) error {
	return newErr(Usage, op, fmt.Errorf(format, a...))
}

// Systemf builds a System-kind error, typically wrapping a syscall.Errno.
func Systemf(op string, err error) error {
	if err == nil {
		return nil
	}
	return newErr(System, op, err)
}

// Protocolf builds a Protocol-kind error.
func Protocolf(op, format string, a ...interface{}) error {
	return newErr(Protocol, op, fmt.Errorf(format, a...))
}

// Configf builds a Config-kind error.
func Configf(op, format string, a ...interface{}) error {
	return newErr(Config, op, fmt.Errorf(format, a...))
}

// Is reports whether err (or something it wraps) is a jailerr.Error of
// kind k.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if je, ok := err.(*Error); ok {
			e = je
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
