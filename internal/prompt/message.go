// Package prompt assembles tiered context into an ordered, cache-tagged
// message list. Cached tiers come first, most stable first, so each tier's
// cache breakpoint covers a byte-identical prefix across turns.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is the author of a message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block types.
const (
	BlockText     = "text"
	BlockImageURL = "image_url"
)

// CacheControl marks the end of a cacheable prefix.
type CacheControl struct {
	Type string `json:"type"`
}

// Ephemeral returns the provider's short-lived cache marker.
func Ephemeral() *CacheControl { return &CacheControl{Type: "ephemeral"} }

// ImageURL references an image by URL or data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// Block is one typed content part of a message.
type Block struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	ImageURL     *ImageURL     `json:"image_url,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// Message is a role-tagged chat message. Content is either plain Text or,
// when Blocks is non-nil, a list of typed blocks. Only block content can
// carry a cache marker.
type Message struct {
	Role   Role
	Text   string
	Blocks []Block
}

// Cached reports whether any block in m carries a cache marker.
func (m Message) Cached() bool {
	for _, b := range m.Blocks {
		if b.CacheControl != nil {
			return true
		}
	}
	return false
}

// Content returns the concatenated text of m regardless of its shape.
func (m Message) Content() string {
	if m.Blocks == nil {
		return m.Text
	}
	var b strings.Builder
	for _, blk := range m.Blocks {
		if blk.Type == BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// markCached converts m to block form if needed and tags its last text block.
func (m *Message) markCached() {
	if m.Blocks == nil {
		m.Blocks = []Block{{Type: BlockText, Text: m.Text}}
		m.Text = ""
	}
	for i := len(m.Blocks) - 1; i >= 0; i-- {
		if m.Blocks[i].Type == BlockText {
			m.Blocks[i].CacheControl = Ephemeral()
			return
		}
	}
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes content as a string or a block list.
func (m Message) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if m.Blocks != nil {
		content, err = json.Marshal(m.Blocks)
	} else {
		content, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, fmt.Errorf("prompt: marshal content: %w", err)
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON accepts either content shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("prompt: unmarshal message: %w", err)
	}
	if len(w.Content) == 0 {
		return errors.New("prompt: message has no content")
	}
	*m = Message{Role: w.Role}
	if w.Content[0] == '[' {
		if err := json.Unmarshal(w.Content, &m.Blocks); err != nil {
			return fmt.Errorf("prompt: unmarshal blocks: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(w.Content, &m.Text); err != nil {
		return fmt.Errorf("prompt: unmarshal text: %w", err)
	}
	return nil
}
