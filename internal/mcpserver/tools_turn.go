package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papapumpkin/stratum/internal/session"
	"github.com/papapumpkin/stratum/internal/stability"
)

// historyInput is one prior conversation message.
type historyInput struct {
	Role    string `json:"role" jsonschema:"user or assistant"`
	Content string `json:"content"`
}

// runTurnInput is the input schema for the run_turn tool.
type runTurnInput struct {
	Prompt       string            `json:"prompt,omitempty" jsonschema:"The user's message for this turn (required)"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Files        []string          `json:"files,omitempty" jsonschema:"Repository paths selected for this turn"`
	Symbols      map[string]string `json:"symbols,omitempty" jsonschema:"Symbol summaries keyed by repository path"`
	URLs         map[string]string `json:"urls,omitempty" jsonschema:"Fetched URL contents keyed by URL"`
	Modified     []string          `json:"modified,omitempty" jsonschema:"Paths changed since the previous turn"`
	History      []historyInput    `json:"history,omitempty"`
}

// messageOutput is one assembled message in plain form.
type messageOutput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Cached  bool   `json:"cached"`
}

// runTurnOutput is the output schema for the run_turn tool.
type runTurnOutput struct {
	Turn       int64           `json:"turn"`
	Messages   []messageOutput `json:"messages"`
	Changes    []changeOutput  `json:"changes"`
	TierTokens map[string]int  `json:"tier_tokens"`
}

// purgeHistoryInput is the input schema for the purge_history tool.
type purgeHistoryInput struct{}

// purgeHistoryOutput is the output schema for the purge_history tool.
type purgeHistoryOutput struct {
	Purged int `json:"purged"`
}

// registerTurnTools registers the run_turn and purge_history tools.
func (s *Server) registerTurnTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_turn",
		Description: "Advance the cache tiers for one turn and return the assembled message list",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input runTurnInput) (*mcp.CallToolResult, runTurnOutput, error) {
		if input.Prompt == "" {
			return nil, runTurnOutput{}, fmt.Errorf("prompt is required")
		}
		in := session.Input{
			Prompt:       input.Prompt,
			SystemPrompt: input.SystemPrompt,
			Files:        input.Files,
			Symbols:      input.Symbols,
			URLs:         input.URLs,
			Modified:     input.Modified,
		}
		for _, h := range input.History {
			in.History = append(in.History, session.HistoryEntry{Role: h.Role, Content: h.Content})
		}

		res, err := s.session.Turn(ctx, in)
		if err != nil {
			return nil, runTurnOutput{}, err
		}

		out := runTurnOutput{
			Turn:       res.Turn,
			Messages:   make([]messageOutput, 0, len(res.Messages)),
			Changes:    changesOutput(res.Changes),
			TierTokens: make(map[string]int, len(res.TierTokens)),
		}
		for _, m := range res.Messages {
			out.Messages = append(out.Messages, messageOutput{
				Role:    string(m.Role),
				Content: m.Content(),
				Cached:  m.Cached(),
			})
		}
		for i, tokens := range res.TierTokens {
			out.TierTokens[stability.Tier(i).String()] = tokens
		}
		return nil, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "purge_history",
		Description: "Drop every tracked history item; call after the conversation is compacted",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ purgeHistoryInput) (*mcp.CallToolResult, purgeHistoryOutput, error) {
		n, err := s.session.PurgeHistory(ctx)
		if err != nil {
			return nil, purgeHistoryOutput{}, err
		}
		return nil, purgeHistoryOutput{Purged: n}, nil
	})
}
