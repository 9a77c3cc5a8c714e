package stability

import (
	"fmt"
	"strconv"
	"strings"
)

// TrackedItem is the tracker's record for one unit of prompt content.
type TrackedItem struct {
	Key           string   `json:"-"`
	Type          ItemType `json:"item_type"`
	Tier          Tier     `json:"tier"`
	N             int      `json:"n"`
	ContentHash   string   `json:"content_hash"`
	TokenEstimate int      `json:"token_estimate"`

	// Resident is set once the item has entered a cached tier. A resident
	// item that falls back to Active is still part of the context.
	Resident bool `json:"resident,omitempty"`
}

// Path returns the repository path a file or symbol item belongs to, or ""
// for history items.
func (it *TrackedItem) Path() string {
	if it.Type == TypeHistory {
		return ""
	}
	_, rest, _ := strings.Cut(it.Key, ":")
	return rest
}

// ItemInfo describes an item submitted as active for the current turn.
type ItemInfo struct {
	Type          ItemType
	ContentHash   string
	TokenEstimate int
}

// FileKey returns the tracker key for a file's full contents.
func FileKey(path string) string { return "file:" + path }

// SymbolKey returns the tracker key for a file's symbol summary.
func SymbolKey(path string) string { return "symbol:" + path }

// HistoryKey returns the tracker key for the history message at index.
func HistoryKey(index int) string { return "history:" + strconv.Itoa(index) }

// ParseKey splits a tracker key into its type and identity part.
func ParseKey(key string) (ItemType, string, error) {
	prefix, rest, ok := strings.Cut(key, ":")
	if !ok || rest == "" {
		return 0, "", fmt.Errorf("stability: malformed key %q", key)
	}
	var it ItemType
	if err := it.UnmarshalText([]byte(prefix)); err != nil {
		return 0, "", fmt.Errorf("stability: key %q: %w", key, err)
	}
	return it, rest, nil
}

// HistoryIndex returns the message index encoded in a history key.
func HistoryIndex(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "history:")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// TierChange records one item moving between tiers during an update.
type TierChange struct {
	Key  string
	Type ItemType
	From Tier
	To   Tier
}

// IsPromotion reports whether the item moved toward a more stable tier.
func (c TierChange) IsPromotion() bool { return c.To > c.From }

// String formats the change for logs, e.g. "promote file:a.go ACTIVE -> L3".
func (c TierChange) String() string {
	dir := "demote"
	if c.IsPromotion() {
		dir = "promote"
	}
	return fmt.Sprintf("%s %s %s -> %s", dir, c.Key, c.From, c.To)
}
