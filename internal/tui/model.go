package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/papapumpkin/stratum/internal/stability"
)

// maxFeed bounds the recent transitions kept for display.
const maxFeed = 8

// chromeLines is the number of rows used outside the viewport: status bar,
// tier summary, feed title and footer.
const chromeLines = 4

// MsgState carries a freshly loaded tracker snapshot.
type MsgState struct {
	Items []stability.TrackedItem
	At    time.Time
}

// MsgEvent carries one line for the recent transitions feed.
type MsgEvent struct {
	Text string
	At   time.Time
}

// MsgError reports a failure to load state.
type MsgError struct {
	Err error
}

// Loader reads the current tracker items.
type Loader func() ([]stability.TrackedItem, error)

// Model is the dashboard's BubbleTea model.
type Model struct {
	Keys   KeyMap
	Target int

	load     Loader
	items    []stability.TrackedItem
	feed     []MsgEvent
	updated  time.Time
	err      error
	collapse bool

	viewport viewport.Model
	width    int
	height   int
}

// NewModel creates a dashboard model that loads state with load.
func NewModel(load Loader, target int) Model {
	return Model{
		Keys:     DefaultKeyMap(),
		Target:   target,
		load:     load,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   20 + chromeLines,
	}
}

// Init loads the initial state.
func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m Model) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		if load == nil {
			return MsgState{At: time.Now()}
		}
		items, err := load()
		if err != nil {
			return MsgError{Err: err}
		}
		return MsgState{Items: items, At: time.Now()}
	}
}

// Update handles BubbleTea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-chromeLines-min(len(m.feed), maxFeed))
		m.refresh()
		return m, nil

	case MsgState:
		m.items = msg.Items
		m.updated = msg.At
		m.err = nil
		m.refresh()
		return m, nil

	case MsgError:
		m.err = msg.Err
		return m, nil

	case MsgEvent:
		m.feed = append(m.feed, msg)
		if len(m.feed) > maxFeed {
			m.feed = m.feed[len(m.feed)-maxFeed:]
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Refresh):
			return m, m.loadCmd()
		case key.Matches(msg, m.Keys.Collapse):
			m.collapse = !m.collapse
			m.refresh()
			return m, nil
		case key.Matches(msg, m.Keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.Keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh re-renders the tier listing into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(renderTiers(m.items, m.Target, m.collapse))
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.statusBar())
	b.WriteString("\n")
	b.WriteString(renderSummary(m.items))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFeed())
	b.WriteString(styleFooter.Width(m.width).Render(m.help()))
	return b.String()
}

func (m Model) statusBar() string {
	updated := "never"
	if !m.updated.IsZero() {
		updated = m.updated.Format(time.TimeOnly)
	}
	parts := []string{
		styleStatusLabel.Render("stratum"),
		styleStatusValue.Render(fmt.Sprintf("%d items", len(m.items))),
		styleStatusValue.Render(fmt.Sprintf("target %d", m.Target)),
		styleStatusValue.Render("updated " + updated),
	}
	if m.err != nil {
		parts = append(parts, styleError.Render(m.err.Error()))
	}
	return styleStatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderFeed() string {
	var b strings.Builder
	b.WriteString(styleSectionTitle.Render("recent transitions"))
	b.WriteString("\n")
	if len(m.feed) == 0 {
		b.WriteString(styleMuted.Render("  (none yet)"))
		b.WriteString("\n")
		return b.String()
	}
	for _, e := range m.feed {
		fmt.Fprintf(&b, "  %s %s\n", styleMuted.Render(e.At.Format(time.TimeOnly)), e.Text)
	}
	return b.String()
}

func (m Model) help() string {
	bindings := m.Keys.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

// displayOrder lists tiers in prompt order, most stable first.
func displayOrder() []stability.Tier {
	return []stability.Tier{stability.L0, stability.L1, stability.L2, stability.L3, stability.Active}
}

// renderSummary renders one compact cell per tier: item count and tokens.
func renderSummary(items []stability.TrackedItem) string {
	var counts, mass [5]int
	for _, it := range items {
		if !it.Tier.Valid() {
			continue
		}
		counts[it.Tier]++
		mass[it.Tier] += it.TokenEstimate
	}
	cells := make([]string, 0, 5)
	for _, tier := range displayOrder() {
		cells = append(cells, styleTier(tier).Render(tier.String())+
			styleMuted.Render(fmt.Sprintf(" %d/%dt", counts[tier], mass[tier])))
	}
	return " " + strings.Join(cells, "   ")
}

// renderTiers lists every item grouped by tier. With collapse set the
// Active tier is summarized on one line.
func renderTiers(items []stability.TrackedItem, target int, collapse bool) string {
	byTier := make(map[stability.Tier][]stability.TrackedItem)
	for _, it := range items {
		byTier[it.Tier] = append(byTier[it.Tier], it)
	}

	var b strings.Builder
	for _, tier := range displayOrder() {
		members := byTier[tier]
		mass := 0
		for _, it := range members {
			mass += it.TokenEstimate
		}
		header := styleTier(tier).Render(tier.String())
		note := styleMuted.Render(fmt.Sprintf("  %d item(s), %d tokens", len(members), mass))
		if tier.Cached() && len(members) > 0 && target > 0 && mass < target {
			note += styleUnderfilled.Render("  underfilled")
		}
		b.WriteString(header + note + "\n")

		if tier == stability.Active && collapse {
			continue
		}
		for _, it := range members {
			b.WriteString(styleItem.Render(fmt.Sprintf("  %-40s n=%-3d %6d tok", it.Key, it.N, it.TokenEstimate)))
			b.WriteString("\n")
		}
	}
	return b.String()
}
