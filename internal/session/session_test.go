package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/papapumpkin/stratum/internal/prompt"
	"github.com/papapumpkin/stratum/internal/stability"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testOptions(dir string) Options {
	return Options{
		WorkDir:   dir,
		StatePath: filepath.Join(dir, ".cache", "cache_stability.json"),
	}
}

func mustTurn(t *testing.T, s *Session, in Input) Result {
	t.Helper()
	res, err := s.Turn(context.Background(), in)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	return res
}

// indexOf returns the position of the first message containing text.
func indexOf(msgs []prompt.Message, text string) int {
	for i, m := range msgs {
		if strings.Contains(m.Content(), text) {
			return i
		}
	}
	return -1
}

func cachedPositions(msgs []prompt.Message) []int {
	var out []int
	for i, m := range msgs {
		if m.Cached() {
			out = append(out, i)
		}
	}
	return out
}

// graduate runs four selected turns and one deselected turn carrying two
// history messages, leaving a.go and the history in L3.
func graduate(t *testing.T, s *Session) Result {
	t.Helper()
	for range 4 {
		mustTurn(t, s, Input{Prompt: "edit", Files: []string{"a.go"}})
	}
	return mustTurn(t, s, Input{
		Prompt: "next",
		History: []HistoryEntry{
			{Role: "user", Content: "old question"},
			{Role: "assistant", Content: "old answer"},
		},
	})
}

func TestTurn_SelectedFileIsActive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	s := Open(testOptions(dir))

	res := mustTurn(t, s, Input{Prompt: "look", Files: []string{"a.go"}})

	if res.Turn != 1 {
		t.Errorf("Turn = %d, want 1", res.Turn)
	}
	if len(res.Changes) != 0 {
		t.Errorf("new Active item should report no change, got %v", res.Changes)
	}
	i := indexOf(res.Messages, "# Working files")
	if i < 0 || !strings.Contains(res.Messages[i].Content(), "package a") {
		t.Fatalf("a.go should render as a working file: %+v", res.Messages)
	}
	if got := indexOf(res.Messages, "# Repository files"); got < 0 || got > i {
		t.Errorf("file tree at %d should precede working files at %d", got, i)
	}
	if len(cachedPositions(res.Messages)) != 0 {
		t.Error("no tier is populated, so nothing should be cached")
	}
	last := res.Messages[len(res.Messages)-1]
	if last.Role != prompt.RoleUser || last.Content() != "look" {
		t.Errorf("last message = %+v", last)
	}
}

func TestTurn_GraduatesOnDeselect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	s := Open(testOptions(dir))

	res := graduate(t, s)

	it, ok := s.Tracker().Item(stability.FileKey("a.go"))
	if !ok || it.Tier != stability.L3 || it.N != stability.DefaultTierConfigs()[stability.L3].EntryN {
		t.Fatalf("a.go = %+v, want L3 at entry n", it)
	}
	for _, key := range []string{"history:0", "history:1"} {
		if h, ok := s.Tracker().Item(key); !ok || h.Tier != stability.L3 {
			t.Errorf("%s should piggyback into L3, got %+v", key, h)
		}
	}
	if len(res.Changes) != 3 {
		t.Errorf("changes = %v, want 3 promotions", res.Changes)
	}
	for _, c := range res.Changes {
		if !c.IsPromotion() || c.To != stability.L3 {
			t.Errorf("unexpected change %v", c)
		}
	}

	ctx := indexOf(res.Messages, "# Recent reference context")
	if ctx < 0 || !strings.Contains(res.Messages[ctx].Content(), "package a") {
		t.Fatalf("a.go should render in L3: %+v", res.Messages)
	}
	cached := cachedPositions(res.Messages)
	if len(cached) != 1 {
		t.Fatalf("breakpoints at %v, want exactly one", cached)
	}
	if got := res.Messages[cached[0]].Content(); got != "old answer" {
		t.Errorf("L3 breakpoint on %q, want the last L3 history message", got)
	}
}

func TestTurn_ChangedContentDemotes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	s := Open(testOptions(dir))
	graduate(t, s)

	writeFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	res := mustTurn(t, s, Input{Prompt: "again"})

	it, _ := s.Tracker().Item(stability.FileKey("a.go"))
	if it.Tier != stability.Active || it.N != 0 {
		t.Errorf("a.go = %+v, want Active n=0", it)
	}
	found := false
	for _, c := range res.Changes {
		if c.Key == "file:a.go" && c.From == stability.L3 && c.To == stability.Active {
			found = true
		}
	}
	if !found {
		t.Errorf("missing L3 -> ACTIVE change in %v", res.Changes)
	}
	i := indexOf(res.Messages, "# Working files")
	if i < 0 || !strings.Contains(res.Messages[i].Content(), "func A()") {
		t.Error("demoted file should render with its new content as a working file")
	}
}

type fakeChanges struct{ paths []string }

func (f *fakeChanges) Drain() []string {
	out := f.paths
	f.paths = nil
	return out
}

func TestTurn_ChangeSourceDemotes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	changes := &fakeChanges{}
	opts := testOptions(dir)
	opts.Changes = changes
	s := Open(opts)
	graduate(t, s)

	changes.paths = []string{"a.go"}
	mustTurn(t, s, Input{Prompt: "touched"})

	it, _ := s.Tracker().Item(stability.FileKey("a.go"))
	if it.Tier != stability.Active {
		t.Errorf("a touched file should be demoted even with identical content, got %s", it.Tier)
	}
}

func TestTurn_MissingFileSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := Open(testOptions(dir))

	res := mustTurn(t, s, Input{Prompt: "hi", Files: []string{"gone.go"}})
	if s.Tracker().Len() != 0 {
		t.Errorf("missing file should not be tracked, got %d items", s.Tracker().Len())
	}
	if indexOf(res.Messages, "# Working files") >= 0 {
		t.Error("missing file should not render")
	}
}

func TestTurn_DeletedFileEvicted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	s := Open(testOptions(dir))
	graduate(t, s)

	if err := os.Remove(filepath.Join(dir, "a.go")); err != nil {
		t.Fatal(err)
	}
	mustTurn(t, s, Input{Prompt: "after delete"})

	if _, ok := s.Tracker().Item(stability.FileKey("a.go")); ok {
		t.Error("deleted file should be evicted")
	}
}

func TestTurn_StatePersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	opts := testOptions(dir)
	graduate(t, Open(opts))

	reopened := Open(opts)
	it, ok := reopened.Tracker().Item(stability.FileKey("a.go"))
	if !ok || it.Tier != stability.L3 {
		t.Errorf("reloaded a.go = %+v, want L3", it)
	}
}

func TestTurn_SymbolsAndURLs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	opts := testOptions(dir)
	opts.SystemPrompt = "You edit code."
	opts.URLContextTokens = 4
	s := Open(opts)

	res := mustTurn(t, s, Input{
		Prompt:  "use docs",
		Symbols: map[string]string{"a.go": "func A()"},
		URLs:    map[string]string{"https://example.com": "line one\nline two\nline three\nline four\n"},
	})

	if res.Messages[0].Role != prompt.RoleSystem || res.Messages[0].Content() != "You edit code." {
		t.Errorf("system = %+v", res.Messages[0])
	}
	if !res.Messages[0].Cached() {
		t.Error("system message should carry the top breakpoint")
	}
	u := indexOf(res.Messages, "# Referenced URLs")
	if u < 0 {
		t.Fatal("missing URL context")
	}
	if body := res.Messages[u].Content(); !strings.Contains(body, "## https://example.com") || !strings.Contains(body, "[truncated]") {
		t.Errorf("URL context = %q", body)
	}
	w := indexOf(res.Messages, "a.go (symbols)")
	if w < 0 || w < u {
		t.Errorf("symbol summary should render as a working file after URLs, at %d", w)
	}
	if _, ok := s.Tracker().Item(stability.SymbolKey("a.go")); !ok {
		t.Error("symbol item should be tracked")
	}
}
