package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID %q", id)
		}
		seen[id] = true
		if _, err := Parse(id); err != nil {
			t.Fatalf("Parse(%q): %v", id, err)
		}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("job_", func() string { return "fixed" })
	if got := gen(); got != "job_fixed" {
		t.Fatalf("got %q", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew(t *testing.T) {
	id := New()
	if strings.TrimSpace(id) == "" {
		t.Fatal("empty ID")
	}
	if _, err := Parse(id); err != nil {
		t.Fatal(err)
	}
}
