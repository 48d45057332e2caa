package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if len(id) != 36 || strings.Count(id, "-") != 4 {
			t.Fatalf("malformed UUID %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestNanoID(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if len(id) != 12 {
			t.Fatalf("length: got %d", len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("unexpected character %q in %q", c, id)
			}
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestRestorationPrefix(t *testing.T) {
	id := Restoration()
	if !strings.HasPrefix(id, "rst_") {
		t.Fatalf("expected rst_ prefix, got %q", id)
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("vis_", NanoID(8))
	id := gen()
	if !strings.HasPrefix(id, "vis_") || len(id) != 12 {
		t.Fatalf("bad prefixed ID %q", id)
	}
}
