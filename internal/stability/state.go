package stability

import (
	"fmt"
	"sort"
)

// stateVersion is bumped whenever the persisted layout changes incompatibly.
const stateVersion = 1

// State is the persisted form of a Tracker.
type State struct {
	Version        int                    `json:"version"`
	Items          map[string]TrackedItem `json:"items"`
	PreviousActive []string               `json:"previous_active"`
}

// State returns a deep copy of the tracker's records and previous active set.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := State{
		Version:        stateVersion,
		Items:          make(map[string]TrackedItem, len(t.items)),
		PreviousActive: make([]string, 0, len(t.prevActive)),
	}
	for key, it := range t.items {
		s.Items[key] = *it
	}
	for key := range t.prevActive {
		s.PreviousActive = append(s.PreviousActive, key)
	}
	sort.Strings(s.PreviousActive)
	return s
}

// Restore replaces the tracker's records with s. On error the tracker is
// left unchanged.
func (t *Tracker) Restore(s State) error {
	if s.Version != stateVersion {
		return fmt.Errorf("stability: unsupported state version %d", s.Version)
	}
	items := make(map[string]*TrackedItem, len(s.Items))
	for key, it := range s.Items {
		if !it.Tier.Valid() {
			return fmt.Errorf("stability: item %q has invalid tier %d", key, int(it.Tier))
		}
		if it.N < 0 {
			return fmt.Errorf("stability: item %q has negative counter %d", key, it.N)
		}
		it.Key = key
		if it.Tier.Cached() {
			it.Resident = true
		}
		items[key] = &it
	}
	prev := make(map[string]struct{}, len(s.PreviousActive))
	for _, key := range s.PreviousActive {
		prev[key] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = items
	t.prevActive = prev
	return nil
}
