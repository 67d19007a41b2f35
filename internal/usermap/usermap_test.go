package usermap

import "testing"

func TestGetUidGidRoot(t *testing.T) {
	uid, gid, err := GetUidGid("root")
	if err != nil {
		t.Fatalf("GetUidGid: %v", err)
	}
	if uid != 0 || gid != 0 {
		t.Fatalf("expected (0,0), got (%d,%d)", uid, gid)
	}
}

func TestAddAndByKind(t *testing.T) {
	m := NewMaps()
	m.Add(UID, 0, 1000, 1)
	m.Add(GID, 0, 1000, 1)
	m.Add(UID, 1, 100000, 65536)

	uids := m.byKind(UID)
	if len(uids) != 2 {
		t.Fatalf("expected 2 uid entries, got %d", len(uids))
	}
	gids := m.byKind(GID)
	if len(gids) != 1 {
		t.Fatalf("expected 1 gid entry, got %d", len(gids))
	}
}

func TestKindString(t *testing.T) {
	if UID.String() != "u" {
		t.Fatalf("expected u, got %s", UID.String())
	}
	if GID.String() != "g" {
		t.Fatalf("expected g, got %s", GID.String())
	}
}
