package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papapumpkin/stratum/internal/stability"
)

// defaultChangesLimit is the number of ledger turns tier_changes returns
// when no limit is given.
const defaultChangesLimit = 10

// tierStatusInput is the input schema for the tier_status tool.
type tierStatusInput struct {
	Tier string `json:"tier,omitempty" jsonschema:"Only report this tier (L0, L1, L2, L3 or ACTIVE)"`
}

// itemOutput describes one tracked item.
type itemOutput struct {
	Key    string `json:"key"`
	Type   string `json:"type"`
	N      int    `json:"n"`
	Tokens int    `json:"tokens"`
}

// tierOutput describes one tier.
type tierOutput struct {
	Tier   string       `json:"tier"`
	Tokens int          `json:"tokens"`
	Items  []itemOutput `json:"items"`
}

// tierStatusOutput is the output schema for the tier_status tool.
type tierStatusOutput struct {
	CacheTargetTokens int          `json:"cache_target_tokens"`
	Tiers             []tierOutput `json:"tiers"`
}

// tierChangesInput is the input schema for the tier_changes tool.
type tierChangesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of recent turns to return (default 10)"`
}

// changeOutput describes one tier transition.
type changeOutput struct {
	Key  string `json:"key"`
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// turnOutput describes one recorded turn.
type turnOutput struct {
	ID      int64          `json:"id"`
	At      string         `json:"at"`
	Changes []changeOutput `json:"changes"`
}

// tierChangesOutput is the output schema for the tier_changes tool.
type tierChangesOutput struct {
	Turns []turnOutput `json:"turns"`
}

// registerStatusTools registers the read-only tier_status and tier_changes tools.
func (s *Server) registerStatusTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tier_status",
		Description: "Report every cache tier with its token mass and tracked items",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input tierStatusInput) (*mcp.CallToolResult, tierStatusOutput, error) {
		tiers := []stability.Tier{stability.L0, stability.L1, stability.L2, stability.L3, stability.Active}
		if input.Tier != "" {
			tier, err := stability.ParseTier(input.Tier)
			if err != nil {
				return nil, tierStatusOutput{}, err
			}
			tiers = []stability.Tier{tier}
		}

		tracker := s.session.Tracker()
		out := tierStatusOutput{CacheTargetTokens: tracker.CacheTargetTokens()}
		for _, tier := range tiers {
			to := tierOutput{Tier: tier.String(), Tokens: tracker.TierTokens(tier), Items: []itemOutput{}}
			for _, it := range tracker.ItemsInTier(tier) {
				to.Items = append(to.Items, itemOutput{
					Key:    it.Key,
					Type:   it.Type.String(),
					N:      it.N,
					Tokens: it.TokenEstimate,
				})
			}
			out.Tiers = append(out.Tiers, to)
		}
		return nil, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tier_changes",
		Description: "List recent turns from the ledger with their tier transitions",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input tierChangesInput) (*mcp.CallToolResult, tierChangesOutput, error) {
		lg := s.session.Ledger()
		if lg == nil {
			return nil, tierChangesOutput{}, errors.New("ledger is not configured")
		}
		if input.Limit < 0 {
			return nil, tierChangesOutput{}, fmt.Errorf("limit must be >= 0, got %d", input.Limit)
		}
		limit := input.Limit
		if limit == 0 {
			limit = defaultChangesLimit
		}

		turns, err := lg.RecentTurns(ctx, limit)
		if err != nil {
			return nil, tierChangesOutput{}, fmt.Errorf("reading ledger: %w", err)
		}
		out := tierChangesOutput{Turns: []turnOutput{}}
		for _, t := range turns {
			out.Turns = append(out.Turns, turnOutput{
				ID:      t.ID,
				At:      t.At.UTC().Format(time.RFC3339),
				Changes: changesOutput(t.Changes),
			})
		}
		return nil, out, nil
	})
}

func changesOutput(changes []stability.TierChange) []changeOutput {
	out := make([]changeOutput, 0, len(changes))
	for _, c := range changes {
		out = append(out, changeOutput{
			Key:  c.Key,
			Type: c.Type.String(),
			From: c.From.String(),
			To:   c.To.String(),
		})
	}
	return out
}
