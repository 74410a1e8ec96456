package id

import "testing"

func TestNewIsUniqueHex(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		v := New()
		if len(v) != 32 {
			t.Fatalf("expected 32 characters, got %d (%s)", len(v), v)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("duplicate id %s", v)
		}
		seen[v] = struct{}{}
	}
}
