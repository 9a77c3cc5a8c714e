// Package ui renders stratum's CLI output: tier tables, transition lists
// and ledger summaries.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/stratum/internal/ledger"
	"github.com/papapumpkin/stratum/internal/stability"
)

// DisplayOrder lists tiers in prompt order, most stable first.
func DisplayOrder() []stability.Tier {
	return []stability.Tier{stability.L0, stability.L1, stability.L2, stability.L3, stability.Active}
}

// Printer writes styled output to a terminal stream.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to stderr.
func New() *Printer {
	return &Printer{w: os.Stderr}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Error prints msg as an error.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", styleError.Render("error:"), msg)
}

// Info prints msg de-emphasized.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, styleMuted.Render(msg))
}

// Success prints msg with a check mark.
func (p *Printer) Success(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", styleSuccess.Render("✓"), msg)
}

// TierTable prints every tier in prompt order with its item count, token
// mass and items. Tiers lighter than target are flagged as underfilled.
func (p *Printer) TierTable(items []stability.TrackedItem, target int) {
	byTier := make(map[stability.Tier][]stability.TrackedItem)
	for _, it := range items {
		byTier[it.Tier] = append(byTier[it.Tier], it)
	}

	keyWidth := 0
	for _, it := range items {
		keyWidth = max(keyWidth, len(it.Key))
	}

	for _, tier := range DisplayOrder() {
		members := byTier[tier]
		mass := 0
		for _, it := range members {
			mass += it.TokenEstimate
		}

		title := lipgloss.NewStyle().Foreground(TierColor(tier)).Bold(true).Render(fmt.Sprintf("%-6s", tier))
		summary := fmt.Sprintf("%d item(s), %d tokens", len(members), mass)
		if tier.Cached() && len(members) > 0 && target > 0 && mass < target {
			summary += styleDemote.Render(fmt.Sprintf(" (below target %d)", target))
		}
		fmt.Fprintf(p.w, "%s %s\n", title, styleMuted.Render(summary))

		for _, it := range members {
			fmt.Fprintf(p.w, "  %-*s  n=%-3d %6d tok\n", keyWidth, it.Key, it.N, it.TokenEstimate)
		}
	}
}

// Changes prints tier transitions, promotions in green and demotions in gold.
func (p *Printer) Changes(changes []stability.TierChange) {
	if len(changes) == 0 {
		p.Info("no tier changes")
		return
	}
	for _, c := range changes {
		style, arrow := styleDemote, "↓"
		if c.IsPromotion() {
			style, arrow = stylePromote, "↑"
		}
		fmt.Fprintf(p.w, "  %s %s %s\n", style.Render(arrow), c.Key, styleMuted.Render(fmt.Sprintf("%s → %s", c.From, c.To)))
	}
}

// TurnDone prints a one-line summary of a completed turn.
func (p *Printer) TurnDone(turn int64, messages, changes int, tierTokens [5]int) {
	parts := make([]string, 0, len(tierTokens))
	for _, tier := range DisplayOrder() {
		parts = append(parts, fmt.Sprintf("%s:%d", tier, tierTokens[tier]))
	}
	fmt.Fprintf(p.w, "%s %s\n",
		styleHeader.Render(fmt.Sprintf("turn %d", turn)),
		styleMuted.Render(fmt.Sprintf("%d message(s), %d change(s); %s", messages, changes, strings.Join(parts, " "))))
}

// Stats prints the ledger summary.
func (p *Printer) Stats(s ledger.Stats) {
	fmt.Fprintln(p.w, styleHeader.Render("ledger"))
	fmt.Fprintf(p.w, "  %s %d\n", styleLabel.Render("turns:     "), s.Turns)
	fmt.Fprintf(p.w, "  %s %d\n", styleLabel.Render("promotions:"), s.Promotions)
	fmt.Fprintf(p.w, "  %s %d\n", styleLabel.Render("demotions: "), s.Demotions)
	last := "never"
	if !s.LastTurn.IsZero() {
		last = s.LastTurn.Local().Format(time.DateTime)
	}
	fmt.Fprintf(p.w, "  %s %s\n", styleLabel.Render("last turn: "), last)
}

// RecentTurns prints ledger turns newest first with their transitions.
func (p *Printer) RecentTurns(turns []ledger.TurnRecord) {
	if len(turns) == 0 {
		p.Info("no turns recorded")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(p.w, "%s %s\n",
			styleHeader.Render(fmt.Sprintf("#%d", t.ID)),
			styleMuted.Render(t.At.Local().Format(time.DateTime)))
		if len(t.Changes) > 0 {
			p.Changes(t.Changes)
		}
	}
}
