package netlink

import "net"

// netInterfaceByName resolves a host interface name to its index. Index
// lookup doesn't need the nested-attribute request builder, so it's kept
// on the stdlib net package rather than round-tripping RTM_GETLINK.
func netInterfaceByName(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return iface.Index, nil
}
