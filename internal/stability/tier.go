// Package stability tracks how stable each piece of prompt context is across
// conversational turns and assigns it to a cache tier. Stable content is
// placed early in the prompt where the provider's prefix cache can serve it;
// volatile content stays in the uncached tail.
package stability

import "fmt"

// Tier is a cache stability class. Tiers are ordered from most volatile
// (Active) to most stable (L0), so a larger value is more stable.
type Tier int

// Tiers, most volatile first.
const (
	Active Tier = iota // selected or changed this turn; never cached
	L3
	L2
	L1
	L0 // most stable, first in prompt
)

// CachedTiers returns the cacheable tiers from most stable to least stable.
// This is the order the prompt renders them in and the order cascades run.
func CachedTiers() []Tier { return []Tier{L0, L1, L2, L3} }

var tierNames = [...]string{"ACTIVE", "L3", "L2", "L1", "L0"}

// String returns the canonical upper-case tier name.
func (t Tier) String() string {
	if t < Active || t > L0 {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the five defined tiers.
func (t Tier) Valid() bool { return t >= Active && t <= L0 }

// Cached reports whether content in t is placed in the cached prefix.
func (t Tier) Cached() bool { return t > Active && t <= L0 }

// MoreVolatile returns the next tier toward Active. Active returns itself.
func (t Tier) MoreVolatile() Tier {
	if t <= Active {
		return Active
	}
	return t - 1
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("stability: invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier parses a tier name as produced by Tier.String.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return Active, fmt.Errorf("stability: unknown tier %q", s)
}

// TierConfig holds the stability counter thresholds for one tier.
type TierConfig struct {
	// EntryN is the counter value an item is given when it enters the tier.
	EntryN int
	// PromotionN is the counter value a resident item must reach before it
	// may move to the next more stable tier. Zero for L0, which is terminal.
	PromotionN int
}

// GraduationThreshold is the minimum stability counter an Active item needs
// at the moment it is deselected to graduate into L3.
const GraduationThreshold = 3

// DefaultTierConfigs returns the default thresholds indexed by Tier. Each
// tier's EntryN equals the PromotionN of the tier below it, so a promoted
// item keeps its counter and lands exactly at the new tier's entry value.
func DefaultTierConfigs() [5]TierConfig {
	return [5]TierConfig{
		Active: {EntryN: 0, PromotionN: GraduationThreshold},
		L3:     {EntryN: 3, PromotionN: 6},
		L2:     {EntryN: 6, PromotionN: 9},
		L1:     {EntryN: 9, PromotionN: 12},
		L0:     {EntryN: 12},
	}
}

// ItemType classifies what a tracked item renders.
type ItemType int

const (
	TypeFile    ItemType = iota // full file contents
	TypeSymbol                  // generated symbol summary for one file
	TypeHistory                 // one conversation history message
)

var itemTypeNames = [...]string{"file", "symbol", "history"}

// String returns the lower-case type name, which is also the key prefix.
func (it ItemType) String() string {
	if it < TypeFile || it > TypeHistory {
		return fmt.Sprintf("ItemType(%d)", int(it))
	}
	return itemTypeNames[it]
}

// MarshalText implements encoding.TextMarshaler.
func (it ItemType) MarshalText() ([]byte, error) {
	if it < TypeFile || it > TypeHistory {
		return nil, fmt.Errorf("stability: invalid item type %d", int(it))
	}
	return []byte(it.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (it *ItemType) UnmarshalText(b []byte) error {
	for i, name := range itemTypeNames {
		if name == string(b) {
			*it = ItemType(i)
			return nil
		}
	}
	return fmt.Errorf("stability: unknown item type %q", string(b))
}
