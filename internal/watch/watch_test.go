package watch

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// waitFor polls Drain until want appears or the deadline passes, returning
// everything drained along the way.
func waitFor(t *testing.T, c *Collector, want string) []string {
	t.Helper()
	var seen []string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		seen = append(seen, c.Drain()...)
		if slices.Contains(seen, want) {
			return seen
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, saw %v", want, seen)
	return nil
}

func startCollector(t *testing.T, dir string) *Collector {
	t.Helper()
	c, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestCollector_RecordsWrites(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := startCollector(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "pkg", "a.go"), []byte("package pkg\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, c, "pkg/a.go")

	if got := c.Drain(); len(got) != 0 {
		t.Errorf("Drain should reset the set, got %v", got)
	}
}

func TestCollector_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	c := startCollector(t, dir)

	sub := filepath.Join(dir, "fresh")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the loop a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "b.go"), []byte("package fresh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, c, "fresh/b.go")
}

func TestCollector_IgnoresDotDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".cache"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := startCollector(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".cache", "state.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	seen := waitFor(t, c, "main.go")
	if slices.Contains(seen, ".cache/state.json") {
		t.Errorf("dot directory change leaked: %v", seen)
	}
}

func TestRelative(t *testing.T) {
	t.Parallel()
	c := &Collector{Root: filepath.FromSlash("/repo")}

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/repo/a.go", "a.go", true},
		{"/repo/x/y.go", "x/y.go", true},
		{"/repo", "", false},
		{"/elsewhere/a.go", "", false},
		{"/repo/.git/index", "", false},
		{"/repo/x/.hidden", "", false},
	}
	for _, tt := range tests {
		got, ok := c.relative(filepath.FromSlash(tt.in))
		if got != tt.want || ok != tt.ok {
			t.Errorf("relative(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
