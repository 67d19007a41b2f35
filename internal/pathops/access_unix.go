package pathops

import "golang.org/x/sys/unix"

func unixAccessX(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}
