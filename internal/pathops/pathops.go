// Package pathops implements path joining that prefers an alternate root,
// absolute-path checks, and PATH lookup — the small set of path
// primitives the rest of the jailer builds on.
package pathops

import (
	"os"
	"strings"
)

// IsAbsolute reports whether p begins with "/".
func IsAbsolute(p string) bool {
	return strings.HasPrefix(p, "/")
}

// Compare orders absolute paths before relative ones, then walks
// components separated by any number of "/", treating a path that is a
// prefix of another as smaller, and otherwise comparing components
// lexicographically. It is a total order: reflexive, antisymmetric, and
// transitive.
func Compare(a, b string) int {
	aAbs, bAbs := IsAbsolute(a), IsAbsolute(b)
	if aAbs != bAbs {
		if aAbs {
			return -1
		}
		return 1
	}

	ac := splitComponents(a)
	bc := splitComponents(b)

	for i := 0; i < len(ac) && i < len(bc); i++ {
		if ac[i] != bc[i] {
			if ac[i] < bc[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(ac) < len(bc):
		return -1
	case len(ac) > len(bc):
		return 1
	default:
		return 0
	}
}

func splitComponents(p string) []string {
	var out []string
	for _, c := range strings.Split(p, "/") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// PrefixRoot joins root and path, eliminating duplicate slashes. It
// returns path unchanged when root is empty, "/", or equal to path
// (idempotent for those three cases).
func PrefixRoot(root, path string) string {
	if root == "" || root == "/" || root == path {
		return path
	}

	r := strings.TrimRight(root, "/")
	p := path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return r + p
}

// OnPath resolves cmd through the PATH environment variable, optionally
// prefixed by an alternate root, returning the first entry for which
// access(X_OK) succeeds. If cmd contains a "/" it is resolved directly
// (optionally root-prefixed) without consulting PATH.
func OnPath(cmd, rootfs string) (string, bool) {
	if strings.Contains(cmd, "/") {
		full := PrefixRoot(rootfs, cmd)
		if executable(full) {
			return full, true
		}
		return "", false
	}

	for _, dir := range strings.Split(os.Getenv("PATH"), ":") {
		if dir == "" {
			continue
		}
		candidate := PrefixRoot(rootfs, dir+"/"+cmd)
		if executable(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func executable(path string) bool {
	return unixAccessX(path)
}
