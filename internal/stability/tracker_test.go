package stability

import "testing"

func fileInfo(hash string, tokens int) ItemInfo {
	return ItemInfo{Type: TypeFile, ContentHash: hash, TokenEstimate: tokens}
}

func historyInfo(hash string, tokens int) ItemInfo {
	return ItemInfo{Type: TypeHistory, ContentHash: hash, TokenEstimate: tokens}
}

func mustItem(t *testing.T, tr *Tracker, key string) TrackedItem {
	t.Helper()
	it, ok := tr.Item(key)
	if !ok {
		t.Fatalf("item %q not tracked", key)
	}
	return it
}

func TestUpdate_GraduatesAfterSustainedSelection(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	known := []string{"a.py"}
	active := map[string]ItemInfo{FileKey("a.py"): fileInfo("h1", 50)}

	for i := 0; i < 4; i++ {
		tr.Update(Turn{Active: active, KnownFiles: known})
	}
	it := mustItem(t, tr, FileKey("a.py"))
	if it.N != 3 {
		t.Fatalf("N after four turns = %d, want 3", it.N)
	}
	if it.Tier != Active {
		t.Fatalf("tier while selected = %s, want ACTIVE", it.Tier)
	}

	changes := tr.Update(Turn{Active: map[string]ItemInfo{}, KnownFiles: known})
	it = mustItem(t, tr, FileKey("a.py"))
	if it.Tier != L3 {
		t.Errorf("tier after deselect = %s, want L3", it.Tier)
	}
	if it.N != DefaultTierConfigs()[L3].EntryN {
		t.Errorf("N after graduation = %d, want %d", it.N, DefaultTierConfigs()[L3].EntryN)
	}
	if len(changes) != 1 || changes[0].From != Active || changes[0].To != L3 || !changes[0].IsPromotion() {
		t.Errorf("changes = %v, want one ACTIVE -> L3 promotion", changes)
	}
}

func TestUpdate_ShortSelectionStaysActive(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	known := []string{"a.py"}
	active := map[string]ItemInfo{FileKey("a.py"): fileInfo("h1", 50)}

	tr.Update(Turn{Active: active, KnownFiles: known})
	tr.Update(Turn{Active: active, KnownFiles: known})
	if n := mustItem(t, tr, FileKey("a.py")).N; n != 1 {
		t.Fatalf("N = %d, want 1", n)
	}

	changes := tr.Update(Turn{KnownFiles: known})
	if len(changes) != 0 {
		t.Errorf("changes = %v, want none", changes)
	}
	if tier := mustItem(t, tr, FileKey("a.py")).Tier; tier != Active {
		t.Errorf("tier = %s, want ACTIVE", tier)
	}
}

func TestUpdate_RegisteredItemCountsFromZero(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	tr.RegisterItem(FileKey("a.py"), fileInfo("h1", 10), Active)
	active := map[string]ItemInfo{FileKey("a.py"): fileInfo("h1", 10)}
	for i := 0; i < 3; i++ {
		tr.Update(Turn{Active: active})
	}
	if n := mustItem(t, tr, FileKey("a.py")).N; n != 3 {
		t.Fatalf("N = %d, want 3", n)
	}
	tr.Update(Turn{})
	if tier := mustItem(t, tr, FileKey("a.py")).Tier; tier != L3 {
		t.Errorf("tier = %s, want L3", tier)
	}
}

func TestUpdate_ContentChangeEvictsFromEveryTier(t *testing.T) {
	t.Parallel()

	for _, tier := range []Tier{Active, L3, L2, L1, L0} {
		tier := tier
		t.Run(tier.String(), func(t *testing.T) {
			t.Parallel()
			tr := New(Config{})
			key := FileKey("a.go")
			tr.RegisterItem(key, fileInfo("old", 100), tier)

			changes := tr.Update(Turn{Active: map[string]ItemInfo{key: fileInfo("new", 100)}})

			it := mustItem(t, tr, key)
			if it.Tier != Active || it.N != 0 {
				t.Errorf("after hash change: tier=%s n=%d, want ACTIVE n=0", it.Tier, it.N)
			}
			if it.ContentHash != "new" {
				t.Errorf("ContentHash = %q, want %q", it.ContentHash, "new")
			}
			if tier != Active && (len(changes) != 1 || changes[0].IsPromotion()) {
				t.Errorf("changes = %v, want one demotion", changes)
			}
		})
	}
}

func TestUpdate_ModifiedFileForcesActive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		submitted bool
	}{
		{"submitted with unchanged hash", true},
		{"not submitted this turn", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := New(Config{})
			fileKey, symKey := FileKey("pkg/a.go"), SymbolKey("pkg/a.go")
			tr.RegisterItem(fileKey, fileInfo("h", 10), L2)
			tr.RegisterItem(symKey, ItemInfo{Type: TypeSymbol, ContentHash: "s", TokenEstimate: 5}, L1)

			active := map[string]ItemInfo{}
			if tt.submitted {
				active[fileKey] = fileInfo("h", 10)
			}
			tr.Update(Turn{Active: active, Modified: []string{"pkg/a.go"}})

			for _, key := range []string{fileKey, symKey} {
				it := mustItem(t, tr, key)
				if it.Tier != Active || it.N != 0 {
					t.Errorf("%s: tier=%s n=%d, want ACTIVE n=0", key, it.Tier, it.N)
				}
			}
		})
	}
}

func TestUpdate_ContinuouslySelectedNeverGraduates(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	active := map[string]ItemInfo{FileKey("main.go"): fileInfo("h", 400)}
	for i := 0; i < 50; i++ {
		if changes := tr.Update(Turn{Active: active}); len(changes) != 0 {
			t.Fatalf("turn %d: unexpected changes %v", i, changes)
		}
	}
	it := mustItem(t, tr, FileKey("main.go"))
	if it.Tier != Active {
		t.Errorf("tier = %s, want ACTIVE", it.Tier)
	}
	if it.N < GraduationThreshold {
		t.Errorf("N = %d, expected counter to keep accumulating", it.N)
	}
}

func TestUpdate_PromotionBlockedByStableTier(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	tr.RegisterItem(FileKey("stable.go"), fileInfo("s", 100), L2)
	tr.RegisterItem(FileKey("rising.go"), fileInfo("r", 100), L3)
	active := map[string]ItemInfo{FileKey("rising.go"): fileInfo("r", 100)}

	limit := DefaultTierConfigs()[L3].PromotionN
	for i := 0; i < 10; i++ {
		if changes := tr.Update(Turn{Active: active}); len(changes) != 0 {
			t.Fatalf("turn %d: unexpected changes %v", i, changes)
		}
		it := mustItem(t, tr, FileKey("rising.go"))
		if it.N > limit {
			t.Fatalf("turn %d: N = %d exceeds cap %d while blocked", i, it.N, limit)
		}
	}
	it := mustItem(t, tr, FileKey("rising.go"))
	if it.Tier != L3 || it.N != limit {
		t.Errorf("rising.go: tier=%s n=%d, want L3 n=%d", it.Tier, it.N, limit)
	}
}

func TestUpdate_PromotesIntoEmptyTierKeepingCounter(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	tr.RegisterItem(FileKey("a.go"), fileInfo("a", 100), L3)
	active := map[string]ItemInfo{FileKey("a.go"): fileInfo("a", 100)}

	var changes []TierChange
	for i := 0; i < 3; i++ {
		changes = tr.Update(Turn{Active: active})
	}
	it := mustItem(t, tr, FileKey("a.go"))
	if it.Tier != L2 {
		t.Fatalf("tier = %s, want L2", it.Tier)
	}
	if it.N != DefaultTierConfigs()[L3].PromotionN {
		t.Errorf("N = %d, want counter preserved at %d", it.N, DefaultTierConfigs()[L3].PromotionN)
	}
	if len(changes) != 1 || changes[0].From != L3 || changes[0].To != L2 {
		t.Errorf("changes = %v, want L3 -> L2", changes)
	}
}

func TestUpdate_CascadeIsTransitiveInOnePass(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	tr.RegisterItem(FileKey("x.go"), fileInfo("x", 100), L2)
	tr.RegisterItem(FileKey("y.go"), fileInfo("y", 100), L3)
	tr.RegisterItem(FileKey("z.go"), fileInfo("z", 100), Active)
	tr.items[FileKey("y.go")].N = DefaultTierConfigs()[L3].PromotionN
	tr.items[FileKey("z.go")].N = GraduationThreshold

	changes := tr.Update(Turn{Modified: []string{"x.go"}})

	want := map[string][2]Tier{
		FileKey("x.go"): {L2, Active},
		FileKey("y.go"): {L3, L2},
		FileKey("z.go"): {Active, L3},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %d entries", changes, len(want))
	}
	for _, c := range changes {
		w, ok := want[c.Key]
		if !ok {
			t.Errorf("unexpected change %v", c)
			continue
		}
		if c.From != w[0] || c.To != w[1] {
			t.Errorf("%s: %s -> %s, want %s -> %s", c.Key, c.From, c.To, w[0], w[1])
		}
	}
	if n := mustItem(t, tr, FileKey("z.go")).N; n != DefaultTierConfigs()[L3].EntryN {
		t.Errorf("z.go N = %d, want L3 entry %d", n, DefaultTierConfigs()[L3].EntryN)
	}
}

func TestUpdate_SelectedActiveItemsIgnoreBrokenL3(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	tr.RegisterItem(FileKey("a.go"), fileInfo("a", 10), Active)
	tr.items[FileKey("a.go")].N = 10

	tr.Update(Turn{Active: map[string]ItemInfo{FileKey("a.go"): fileInfo("a", 10)}})
	if tier := mustItem(t, tr, FileKey("a.go")).Tier; tier != Active {
		t.Errorf("tier = %s, want ACTIVE while selected", tier)
	}
}

func TestUpdate_EvictsStaleFiles(t *testing.T) {
	t.Parallel()

	tr := New(Config{})
	tr.RegisterItem(FileKey("gone.go"), fileInfo("g", 10), L1)
	tr.RegisterItem(SymbolKey("gone.go"), ItemInfo{Type: TypeSymbol, ContentHash: "s"}, L2)
	tr.RegisterItem(FileKey("kept.go"), fileInfo("k", 10), L1)
	tr.RegisterItem(HistoryKey(0), historyInfo("m", 10), L3)

	tr.Update(Turn{KnownFiles: []string{"kept.go"}})

	for _, key := range []string{FileKey("gone.go"), SymbolKey("gone.go")} {
		if _, ok := tr.Item(key); ok {
			t.Errorf("%s should have been evicted", key)
		}
	}
	for _, key := range []string{FileKey("kept.go"), HistoryKey(0)} {
		if _, ok := tr.Item(key); !ok {
			t.Errorf("%s should still be tracked", key)
		}
	}

	t.Run("nil known files skips eviction", func(t *testing.T) {
		tr := New(Config{})
		tr.RegisterItem(FileKey("a.go"), fileInfo("a", 10), L3)
		tr.Update(Turn{})
		if _, ok := tr.Item(FileKey("a.go")); !ok {
			t.Error("a.go evicted with nil KnownFiles")
		}
	})
}
