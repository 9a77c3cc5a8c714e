package stability

import (
	"log/slog"
	"sort"
	"sync"
)

// Config controls a Tracker.
type Config struct {
	// CacheTargetTokens is the minimum token mass a tier must hold to be
	// worth a dedicated cache breakpoint. Zero disables anchoring, underfill
	// demotion and token-threshold history graduation.
	CacheTargetTokens int

	// Tiers overrides DefaultTierConfigs when non-zero.
	Tiers [5]TierConfig

	// Logger receives tier transitions at debug level. Nil discards.
	Logger *slog.Logger
}

// Turn is the input to a single Update call.
type Turn struct {
	// Active maps item key to its current content for everything included
	// in this turn's request.
	Active map[string]ItemInfo

	// Modified lists repository paths changed since the previous turn.
	Modified []string

	// KnownFiles is the authoritative set of repository paths that still
	// exist. A nil slice skips stale eviction entirely.
	KnownFiles []string
}

// Cluster is a group of related items seeded into one tier together.
type Cluster struct {
	Tier Tier
	Keys []string
}

// Tracker owns the per-item stability records for one repository. Update
// must not be interleaved with itself; the mutex only makes the read
// accessors safe to call from other goroutines.
type Tracker struct {
	mu         sync.Mutex
	items      map[string]*TrackedItem
	prevActive map[string]struct{}
	tiers      [5]TierConfig
	target     int
	logger     *slog.Logger
}

// New creates an empty Tracker.
func New(cfg Config) *Tracker {
	tiers := cfg.Tiers
	if tiers == ([5]TierConfig{}) {
		tiers = DefaultTierConfigs()
	}
	target := cfg.CacheTargetTokens
	if target < 0 {
		target = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		items:      make(map[string]*TrackedItem),
		prevActive: make(map[string]struct{}),
		tiers:      tiers,
		target:     target,
		logger:     logger,
	}
}

// CacheTargetTokens returns the configured minimum tier mass.
func (t *Tracker) CacheTargetTokens() int { return t.target }

// TierConfig returns the thresholds in effect for tier.
func (t *Tracker) TierConfig(tier Tier) TierConfig {
	if !tier.Valid() {
		return TierConfig{}
	}
	return t.tiers[tier]
}

// Update runs one turn of the tier state machine and returns the net tier
// transitions it produced, sorted by key. Items created or deleted during
// the call report no transition unless they end outside Active.
func (t *Tracker) Update(turn Turn) []TierChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := make(map[string]Tier, len(t.items))
	for key, it := range t.items {
		before[key] = it.Tier
	}

	t.evictStale(turn.KnownFiles)
	t.reconcileActive(turn.Active, toSet(turn.Modified))

	l3WasEmpty := t.count(L3) == 0
	t.graduateDeselected(turn.Active)
	if l3WasEmpty && t.count(L3) > 0 {
		t.piggybackHistory()
	}
	t.graduateHistoryByMass()

	t.cascade(turn.Active)
	t.orderHistory()
	t.demoteUnderfilled()

	t.prevActive = make(map[string]struct{}, len(turn.Active))
	for key := range turn.Active {
		t.prevActive[key] = struct{}{}
	}

	return t.changesSince(before)
}

// RegisterItem inserts or replaces a record directly in tier with the
// tier's entry counter.
func (t *Tracker) RegisterItem(key string, info ItemInfo, tier Tier) TrackedItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.register(key, info, tier)
}

func (t *Tracker) register(key string, info ItemInfo, tier Tier) *TrackedItem {
	if !tier.Valid() {
		tier = Active
	}
	it := &TrackedItem{
		Key:           key,
		Type:          info.Type,
		Tier:          tier,
		N:             t.tiers[tier].EntryN,
		ContentHash:   info.ContentHash,
		TokenEstimate: info.TokenEstimate,
		Resident:      tier.Cached(),
	}
	t.items[key] = it
	return it
}

// InitializeFromReferenceGraph seeds every cluster's keys directly into the
// cluster's tier. Keys that are already tracked or malformed are skipped.
// Seeded items carry no content hash; the first hash submitted for them is
// adopted without counting as a change. It returns the number seeded.
func (t *Tracker) InitializeFromReferenceGraph(clusters []Cluster, tokenEstimates map[string]int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	seeded := 0
	for _, c := range clusters {
		for _, key := range c.Keys {
			if _, exists := t.items[key]; exists {
				continue
			}
			typ, _, err := ParseKey(key)
			if err != nil {
				t.logger.Debug("skipping malformed seed key", "key", key, "error", err)
				continue
			}
			t.register(key, ItemInfo{Type: typ, TokenEstimate: tokenEstimates[key]}, c.Tier)
			seeded++
		}
	}
	return seeded
}

// PurgeHistoryItems drops every history record. History keys are message
// offsets, so they become meaningless once the conversation is compacted.
func (t *Tracker) PurgeHistoryItems() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	purged := 0
	for key, it := range t.items {
		if it.Type == TypeHistory {
			delete(t.items, key)
			purged++
		}
	}
	for key := range t.prevActive {
		if _, ok := HistoryIndex(key); ok {
			delete(t.prevActive, key)
		}
	}
	return purged
}

// Item returns a copy of the record for key.
func (t *Tracker) Item(key string) (TrackedItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, ok := t.items[key]
	if !ok {
		return TrackedItem{}, false
	}
	return *it, true
}

// Items returns copies of all records sorted by key.
func (t *Tracker) Items() []TrackedItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackedItem, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ItemsInTier returns copies of the records in tier sorted by key.
func (t *Tracker) ItemsInTier(tier Tier) []TrackedItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []TrackedItem
	for _, it := range t.items {
		if it.Tier == tier {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// TierTokens returns the summed token estimate of the items in tier.
func (t *Tracker) TierTokens(tier Tier) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mass(tier)
}

// Len returns the number of tracked items.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// count returns how many items sit in tier.
func (t *Tracker) count(tier Tier) int {
	n := 0
	for _, it := range t.items {
		if it.Tier == tier {
			n++
		}
	}
	return n
}

// mass returns the summed token estimate of tier.
func (t *Tracker) mass(tier Tier) int {
	total := 0
	for _, it := range t.items {
		if it.Tier == tier {
			total += it.TokenEstimate
		}
	}
	return total
}

// inTier returns the live records in tier, sorted by key.
func (t *Tracker) inTier(tier Tier) []*TrackedItem {
	var out []*TrackedItem
	for _, it := range t.items {
		if it.Tier == tier {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// changesSince diffs current tiers against before and logs each move.
func (t *Tracker) changesSince(before map[string]Tier) []TierChange {
	keys := make([]string, 0, len(t.items))
	for key := range t.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var changes []TierChange
	for _, key := range keys {
		it := t.items[key]
		from, existed := before[key]
		if !existed {
			from = Active
		}
		if from == it.Tier {
			continue
		}
		c := TierChange{Key: key, Type: it.Type, From: from, To: it.Tier}
		t.logger.Debug("tier change", "key", key, "from", from.String(), "to", it.Tier.String(), "n", it.N)
		changes = append(changes, c)
	}
	return changes
}

func toSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
