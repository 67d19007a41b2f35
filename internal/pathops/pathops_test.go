package pathops

import "testing"

func TestCompareAbsoluteBeforeRelative(t *testing.T) {
	if Compare("/foo", "foo") >= 0 {
		t.Fatal("expected absolute path to sort before relative")
	}
	if Compare("foo", "/foo") <= 0 {
		t.Fatal("expected relative path to sort after absolute")
	}
}

func TestComparePrefixFirst(t *testing.T) {
	if Compare("/foo", "/foo/bar") >= 0 {
		t.Fatal("expected /foo < /foo/bar")
	}
	if Compare("/foo/a", "/foo/aaa") >= 0 {
		t.Fatal("expected /foo/a < /foo/aaa")
	}
}

func TestCompareReflexive(t *testing.T) {
	for _, p := range []string{"/a/b/c", "a/b", "/"} {
		if Compare(p, p) != 0 {
			t.Fatalf("expected Compare(%q, %q) == 0", p, p)
		}
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	cases := [][2]string{{"/a", "/b"}, {"/a/b", "/a"}, {"a", "b"}}
	for _, c := range cases {
		x, y := Compare(c[0], c[1]), Compare(c[1], c[0])
		if (x < 0) != (y > 0) || (x == 0) != (y == 0) {
			t.Fatalf("Compare(%q,%q)=%d not antisymmetric with Compare(%q,%q)=%d", c[0], c[1], x, c[1], c[0], y)
		}
	}
}

func TestPrefixRootIdempotent(t *testing.T) {
	for _, root := range []string{"", "/", "/some/path"} {
		p := root
		if root == "" {
			p = "/some/path"
		}
		if got := PrefixRoot(root, p); got != p {
			t.Fatalf("PrefixRoot(%q, %q) = %q, want %q", root, p, got, p)
		}
	}
}

func TestPrefixRootJoins(t *testing.T) {
	got := PrefixRoot("/rootfs/", "/etc/passwd")
	want := "/rootfs/etc/passwd"
	if got != want {
		t.Fatalf("PrefixRoot = %q, want %q", got, want)
	}
}

func TestIsAbsolute(t *testing.T) {
	if !IsAbsolute("/a") {
		t.Fatal("expected /a to be absolute")
	}
	if IsAbsolute("a") {
		t.Fatal("expected a to be relative")
	}
}
