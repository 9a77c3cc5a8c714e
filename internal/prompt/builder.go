package prompt

import (
	"sort"
	"strings"

	"github.com/papapumpkin/stratum/internal/stability"
)

// Acknowledgement is the assistant reply paired with every injected context
// message so the conversation keeps alternating user and assistant turns.
const Acknowledgement = "Ok, I have reviewed this context."

// sectionSeparator joins rendered items inside one context message.
const sectionSeparator = "\n\n"

// Section is one rendered item of context, identified by its tracker key.
type Section struct {
	Key     string
	Content string
}

// HistoryMessage is one prior conversation message.
type HistoryMessage struct {
	Role    Role
	Content string
}

// Request carries everything rendered for a single turn.
type Request struct {
	SystemPrompt string

	// Tiers holds the rendered items for each cached tier. Active entries
	// are ignored; uncached content goes in ActiveFiles.
	Tiers map[stability.Tier][]Section

	// ActiveFiles are the uncached working files, emitted after the tiers.
	ActiveFiles []Section

	// History is the prior conversation in order.
	History []HistoryMessage

	// HistoryTiers maps a History index to the tier it sits in. Missing
	// indices are Active.
	HistoryTiers map[int]stability.Tier

	FileTree   string
	URLContext string
	UserPrompt string

	// Images are attached to the final user message as image_url blocks.
	Images []string
}

// tierHeader titles a cached tier's context message.
func tierHeader(tier stability.Tier) string {
	switch tier {
	case stability.L0:
		return "# Core reference context"
	case stability.L1:
		return "# Stable reference context"
	case stability.L2:
		return "# Established reference context"
	default:
		return "# Recent reference context"
	}
}

// BuildMessages renders req in fixed order: system (with L0), L1, L2, L3,
// file tree, URL context, active files, active history, user prompt. Empty
// sections are omitted. Each cached tier gets at most one cache breakpoint
// and breakpoints only move toward the end of the list.
func BuildMessages(req Request) []Message {
	var msgs []Message
	historyByTier := splitHistory(req.History, req.HistoryTiers)

	system := req.SystemPrompt
	if l0 := joinSections(req.Tiers[stability.L0]); l0 != "" {
		if system != "" {
			system += sectionSeparator
		}
		system += tierHeader(stability.L0) + "\n\n" + l0
	}
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Text: system})
	}
	// L0 history follows the system message and takes over its breakpoint.
	if l0History := historyByTier[stability.L0]; len(l0History) > 0 {
		msgs = appendTier(msgs, "", l0History)
	} else if len(msgs) > 0 {
		msgs[0].markCached()
	}

	for _, tier := range []stability.Tier{stability.L1, stability.L2, stability.L3} {
		body := joinSections(req.Tiers[tier])
		if body != "" {
			body = tierHeader(tier) + "\n\n" + body
		}
		msgs = appendTier(msgs, body, historyByTier[tier])
	}

	if req.FileTree != "" {
		msgs = appendPair(msgs, "# Repository files\n\n```\n"+strings.TrimRight(req.FileTree, "\n")+"\n```")
	}
	if req.URLContext != "" {
		msgs = appendPair(msgs, "# Referenced URLs\n\n"+req.URLContext)
	}
	if active := joinSections(req.ActiveFiles); active != "" {
		msgs = appendPair(msgs, "# Working files\n\n"+active)
	}
	for _, h := range historyByTier[stability.Active] {
		msgs = append(msgs, Message{Role: h.Role, Text: h.Content})
	}

	msgs = append(msgs, userMessage(req.UserPrompt, req.Images))
	return msgs
}

// appendTier emits one tier section: the context pair, then the tier's
// history. The breakpoint goes on the history tail when there is one,
// otherwise on the context message. An empty tier emits nothing.
func appendTier(msgs []Message, body string, history []HistoryMessage) []Message {
	tagAt := -1
	if body != "" {
		msgs = appendPair(msgs, body)
		tagAt = len(msgs) - 2
	}
	for _, h := range history {
		msgs = append(msgs, Message{Role: h.Role, Text: h.Content})
		tagAt = len(msgs) - 1
	}
	if tagAt >= 0 {
		msgs[tagAt].markCached()
	}
	return msgs
}

func appendPair(msgs []Message, body string) []Message {
	return append(msgs,
		Message{Role: RoleUser, Text: body},
		Message{Role: RoleAssistant, Text: Acknowledgement},
	)
}

func userMessage(text string, images []string) Message {
	if len(images) == 0 {
		return Message{Role: RoleUser, Text: text}
	}
	blocks := make([]Block, 0, len(images)+1)
	if text != "" {
		blocks = append(blocks, Block{Type: BlockText, Text: text})
	}
	for _, url := range images {
		blocks = append(blocks, Block{Type: BlockImageURL, ImageURL: &ImageURL{URL: url}})
	}
	return Message{Role: RoleUser, Blocks: blocks}
}

// joinSections concatenates non-empty sections sorted by key.
func joinSections(sections []Section) string {
	if len(sections) == 0 {
		return ""
	}
	sorted := make([]Section, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	for _, s := range sorted {
		if s.Content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(sectionSeparator)
		}
		b.WriteString(s.Content)
	}
	return b.String()
}

// splitHistory buckets history messages by tier, preserving order. A message
// never lands in a more stable tier than any message before it, so the
// buckets concatenate back into the original conversation.
func splitHistory(history []HistoryMessage, tiers map[int]stability.Tier) map[stability.Tier][]HistoryMessage {
	out := make(map[stability.Tier][]HistoryMessage)
	ceiling := stability.L0
	for i, h := range history {
		tier, ok := tiers[i]
		if !ok || !tier.Valid() {
			tier = stability.Active
		}
		tier = min(tier, ceiling)
		ceiling = tier
		out[tier] = append(out[tier], h)
	}
	return out
}
