package stability

import "sort"

// evictStale deletes file and symbol records whose path no longer exists.
func (t *Tracker) evictStale(known []string) {
	if known == nil {
		return
	}
	exists := toSet(known)
	for key, it := range t.items {
		if it.Type == TypeHistory {
			continue
		}
		if _, ok := exists[it.Path()]; !ok {
			delete(t.items, key)
			delete(t.prevActive, key)
		}
	}
}

// reconcileActive registers new items, advances the counters of unchanged
// ones and evicts changed or modified ones back to Active.
func (t *Tracker) reconcileActive(active map[string]ItemInfo, modified map[string]struct{}) {
	anchored := t.anchoredKeys()

	for key, info := range active {
		it, ok := t.items[key]
		if !ok {
			t.register(key, info, Active)
			continue
		}
		changed := it.ContentHash != "" && info.ContentHash != it.ContentHash
		if info.ContentHash != "" {
			it.ContentHash = info.ContentHash
		}
		it.TokenEstimate = info.TokenEstimate

		if changed || t.isModified(it, modified) {
			t.resetToActive(it)
			continue
		}
		if anchored[key] {
			continue
		}
		it.N++
	}

	// A modified file evicts its records even when they were not submitted.
	if len(modified) == 0 {
		return
	}
	for _, it := range t.items {
		if t.isModified(it, modified) {
			t.resetToActive(it)
		}
	}
}

func (t *Tracker) isModified(it *TrackedItem, modified map[string]struct{}) bool {
	if it.Type == TypeHistory {
		return false
	}
	_, ok := modified[it.Path()]
	return ok
}

func (t *Tracker) resetToActive(it *TrackedItem) {
	it.Tier = Active
	it.N = t.tiers[Active].EntryN
}

// anchoredKeys returns the items whose counters are frozen this turn. Within
// each cached tier, items are visited in ascending token order (ties broken
// by key) while a running total stays below the cache target; every item
// visited that way already lies inside the tier's guaranteed cache block.
func (t *Tracker) anchoredKeys() map[string]bool {
	if t.target <= 0 {
		return nil
	}
	anchored := make(map[string]bool)
	for _, tier := range CachedTiers() {
		items := t.inTier(tier)
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].TokenEstimate < items[j].TokenEstimate
		})
		running := 0
		for _, it := range items {
			if running >= t.target {
				break
			}
			anchored[it.Key] = true
			running += it.TokenEstimate
		}
	}
	return anchored
}

// graduate moves an Active item into L3 at L3's entry counter.
func (t *Tracker) graduate(it *TrackedItem) {
	it.Tier = L3
	it.N = t.tiers[L3].EntryN
	it.Resident = true
}

func (t *Tracker) eligibleToGraduate(it *TrackedItem) bool {
	return it.Tier == Active && it.N >= t.tiers[Active].PromotionN
}

// graduateDeselected promotes items that just left the active set and have
// proven stable enough.
func (t *Tracker) graduateDeselected(active map[string]ItemInfo) {
	for key := range t.prevActive {
		if _, still := active[key]; still {
			continue
		}
		it, ok := t.items[key]
		if !ok {
			continue
		}
		if t.eligibleToGraduate(it) {
			t.graduate(it)
		}
	}
}

// piggybackHistory moves all Active history into L3 once L3 has been
// opened by a graduation in the same turn.
func (t *Tracker) piggybackHistory() {
	for _, it := range t.items {
		if it.Type == TypeHistory && it.Tier == Active {
			t.graduate(it)
		}
	}
}

// graduateHistoryByMass keeps the most recent Active history that fits under
// the cache target as the live window and graduates everything older, but
// only when that older run is itself heavy enough to fill a cache block.
func (t *Tracker) graduateHistoryByMass() {
	if t.target <= 0 {
		return
	}
	type indexed struct {
		idx int
		it  *TrackedItem
	}
	var hist []indexed
	for key, it := range t.items {
		if it.Type != TypeHistory || it.Tier != Active {
			continue
		}
		idx, ok := HistoryIndex(key)
		if !ok {
			continue
		}
		hist = append(hist, indexed{idx: idx, it: it})
	}
	sort.Slice(hist, func(i, j int) bool { return hist[i].idx < hist[j].idx })

	window := 0
	split := len(hist)
	for i := len(hist) - 1; i >= 0; i-- {
		if window+hist[i].it.TokenEstimate > t.target {
			break
		}
		window += hist[i].it.TokenEstimate
		split = i
	}

	older := 0
	for _, h := range hist[:split] {
		older += h.it.TokenEstimate
	}
	if older < t.target {
		return
	}
	for _, h := range hist[:split] {
		t.graduate(h.it)
	}
}

// cascade walks the cached tiers from most to least stable. An empty
// destination pulls eligible items up from the tier below; a non-empty one
// blocks them and caps their counters at the promotion threshold. Emptiness
// is re-checked per tier, so a single pass carries promotions all the way
// down to graduating idle Active items.
func (t *Tracker) cascade(active map[string]ItemInfo) {
	for _, dst := range CachedTiers() {
		src := dst.MoreVolatile()
		threshold := t.tiers[src].PromotionN

		if t.count(dst) == 0 {
			if src == Active {
				t.graduateIdle(active)
				continue
			}
			for _, it := range t.inTier(src) {
				if it.N >= threshold {
					it.Tier = dst
				}
			}
			continue
		}

		for _, it := range t.inTier(src) {
			if it.N > threshold {
				it.N = threshold
			}
		}
	}
}

// graduateIdle moves unselected, eligible Active items into an empty L3 as
// one group. A group lighter than the cache target stays in Active.
func (t *Tracker) graduateIdle(active map[string]ItemInfo) {
	var idle []*TrackedItem
	mass := 0
	for _, it := range t.inTier(Active) {
		if _, selected := active[it.Key]; selected || !t.eligibleToGraduate(it) {
			continue
		}
		idle = append(idle, it)
		mass += it.TokenEstimate
	}
	if t.target > 0 && mass < t.target {
		return
	}
	for _, it := range idle {
		t.graduate(it)
	}
}

// orderHistory keeps history tiers monotone in message order: no message
// sits in a more stable tier than any message before it. An item pulled down
// keeps at most its new tier's promotion counter.
func (t *Tracker) orderHistory() {
	type indexed struct {
		idx int
		it  *TrackedItem
	}
	var hist []indexed
	for key, it := range t.items {
		if it.Type != TypeHistory {
			continue
		}
		if idx, ok := HistoryIndex(key); ok {
			hist = append(hist, indexed{idx: idx, it: it})
		}
	}
	sort.Slice(hist, func(i, j int) bool { return hist[i].idx < hist[j].idx })

	ceiling := L0
	for _, h := range hist {
		if h.it.Tier > ceiling {
			h.it.Tier = ceiling
			if limit := t.tiers[ceiling].PromotionN; h.it.N > limit {
				h.it.N = limit
			}
		}
		ceiling = h.it.Tier
	}
}

// demoteUnderfilled merges any cached tier lighter than the cache target into
// the tier below it. Tiers are visited most stable first so merged mass can
// rescue the receiving tier.
func (t *Tracker) demoteUnderfilled() {
	if t.target <= 0 {
		return
	}
	for _, tier := range CachedTiers() {
		items := t.inTier(tier)
		if len(items) == 0 || t.mass(tier) >= t.target {
			continue
		}
		dst := tier.MoreVolatile()
		limit := t.tiers[dst].PromotionN
		for _, it := range items {
			it.Tier = dst
			if it.N > limit {
				it.N = limit
			}
		}
	}
}
