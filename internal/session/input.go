package session

import (
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/stratum/internal/prompt"
)

// HistoryEntry is one prior conversation message.
type HistoryEntry struct {
	Role    string `toml:"role"`
	Content string `toml:"content"`
}

// Input describes one turn: what the user asked and what is in context.
type Input struct {
	Prompt       string `toml:"prompt"`
	SystemPrompt string `toml:"system_prompt"`

	// Files are the repository paths selected for this turn, relative to
	// the work directory.
	Files []string `toml:"files"`

	// Symbols maps a repository path to its symbol summary.
	Symbols map[string]string `toml:"symbols"`

	// URLs maps a fetched URL to its text content.
	URLs map[string]string `toml:"urls"`

	// Images are image URLs (http or data:) attached to the prompt.
	Images []string `toml:"images"`

	// Modified lists paths changed since the previous turn, in addition to
	// any reported by the session's change source.
	Modified []string `toml:"modified"`

	History []HistoryEntry `toml:"history"`
}

// ParseInput decodes a TOML turn description.
func ParseInput(r io.Reader) (Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("session: read input: %w", err)
	}
	var in Input
	if err := toml.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("session: parse input: %w", err)
	}
	if err := in.validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// LoadInput reads a TOML turn description from path.
func LoadInput(path string) (Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return Input{}, fmt.Errorf("session: open input: %w", err)
	}
	defer f.Close()
	return ParseInput(f)
}

func (in Input) validate() error {
	for i, h := range in.History {
		switch prompt.Role(h.Role) {
		case prompt.RoleUser, prompt.RoleAssistant:
		default:
			return fmt.Errorf("session: history[%d]: role must be user or assistant, got %q", i, h.Role)
		}
	}
	return nil
}
