// Package session runs one conversational turn end to end: it scans the
// repository, hashes and estimates every context item, advances the
// stability tracker, renders the tiered message list and persists the
// result.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/papapumpkin/stratum/internal/ledger"
	"github.com/papapumpkin/stratum/internal/prompt"
	"github.com/papapumpkin/stratum/internal/snapshot"
	"github.com/papapumpkin/stratum/internal/stability"
	"github.com/papapumpkin/stratum/internal/telemetry"
	"github.com/papapumpkin/stratum/internal/tokens"
)

// ChangeSource reports repository paths modified since the last call.
// *watch.Collector satisfies it.
type ChangeSource interface {
	Drain() []string
}

// Options configures a Session. WorkDir and StatePath are required; every
// other field is optional.
type Options struct {
	WorkDir           string
	StatePath         string
	CacheTargetTokens int
	TreeDepth         int
	URLContextTokens  int

	// SystemPrompt is used when an Input carries none.
	SystemPrompt string

	Estimator tokens.Estimator
	Ledger    *ledger.Ledger
	Telemetry *telemetry.Emitter
	Changes   ChangeSource
	Logger    *slog.Logger
}

// Session owns the tracker for one repository. Its methods serialize on an
// internal mutex, so one Session may be shared by the CLI and the MCP server.
type Session struct {
	mu      sync.Mutex
	opts    Options
	store   *stability.Store
	tracker *stability.Tracker
	est     tokens.Estimator
	logger  *slog.Logger
	seq     int64
}

// Result is the outcome of one turn.
type Result struct {
	// Turn numbers turns within this Session, starting at 1.
	Turn int64

	// LedgerID is the ledger row for the turn, or 0 without a ledger.
	LedgerID int64

	Messages   []prompt.Message
	Changes    []stability.TierChange
	TierTokens [5]int
}

// Open loads the tracker state for opts.StatePath, starting cold when the
// file is missing or corrupt.
func Open(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	est := opts.Estimator
	if est == nil {
		est = tokens.Default()
	}
	store := stability.NewStore(opts.StatePath, logger)
	tracker := store.Load(stability.Config{
		CacheTargetTokens: opts.CacheTargetTokens,
		Logger:            logger,
	})
	return &Session{
		opts:    opts,
		store:   store,
		tracker: tracker,
		est:     est,
		logger:  logger,
	}
}

// Tracker returns the session's tracker. Its read accessors are safe to call
// concurrently with Turn.
func (s *Session) Tracker() *stability.Tracker { return s.tracker }

// Ledger returns the configured ledger, which may be nil.
func (s *Session) Ledger() *ledger.Ledger { return s.opts.Ledger }

// StatePath returns the tracker state file location.
func (s *Session) StatePath() string { return s.store.Path() }

// Turn runs a single turn for in and returns the assembled messages.
func (s *Session) Turn(ctx context.Context, in Input) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	res := Result{Turn: s.seq}
	s.emit(telemetry.Event{Kind: telemetry.KindTurnStart, Turn: res.Turn, Data: map[string]int{
		"files":   len(in.Files),
		"symbols": len(in.Symbols),
		"history": len(in.History),
	}})

	scanner := &snapshot.Scanner{WorkDir: s.opts.WorkDir, MaxDepth: s.opts.TreeDepth}
	snap, err := scanner.Scan(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("session: turn: %w", err)
	}

	contents, active, known, err := s.collect(in, snap)
	if err != nil {
		return Result{}, fmt.Errorf("session: turn: %w", err)
	}

	modified := append([]string(nil), in.Modified...)
	if s.opts.Changes != nil {
		modified = append(modified, s.opts.Changes.Drain()...)
	}
	res.Changes = s.tracker.Update(stability.Turn{
		Active:     active,
		Modified:   modified,
		KnownFiles: known,
	})

	req, err := s.request(in, snap.Tree, contents)
	if err != nil {
		return Result{}, fmt.Errorf("session: turn: %w", err)
	}
	res.Messages = prompt.BuildMessages(req)

	if err := s.store.Save(s.tracker); err != nil {
		return Result{}, fmt.Errorf("session: turn: %w", err)
	}
	res.TierTokens = s.tierTokens()
	res.LedgerID = s.record(ctx, res)

	for _, c := range res.Changes {
		s.emit(telemetry.Event{Kind: telemetry.KindTierChange, Turn: res.Turn, Key: c.Key, Data: map[string]string{
			"type": c.Type.String(),
			"from": c.From.String(),
			"to":   c.To.String(),
		}})
	}
	s.emit(telemetry.Event{Kind: telemetry.KindTurnDone, Turn: res.Turn, Data: map[string]any{
		"messages":    len(res.Messages),
		"changes":     len(res.Changes),
		"tier_tokens": res.TierTokens,
	}})
	s.logger.Debug("turn complete", "turn", res.Turn, "messages", len(res.Messages), "changes", len(res.Changes))
	return res, nil
}

// PurgeHistory drops every tracked history item and saves. Call it whenever
// the conversation is compacted.
func (s *Session) PurgeHistory(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := s.tracker.PurgeHistoryItems()
	if err := s.store.Save(s.tracker); err != nil {
		return 0, fmt.Errorf("session: purge history: %w", err)
	}
	s.emit(telemetry.Event{Kind: telemetry.KindHistoryPurged, Data: map[string]int{"purged": purged}})
	s.logger.Info("history purged", "items", purged)
	return purged, nil
}

// Seed bulk-loads clusters into their tiers and saves. Token estimates come
// from the current file contents; symbol estimates are replaced by the first
// submitted summary.
func (s *Session) Seed(ctx context.Context, clusters []stability.Cluster) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	estimates := make(map[string]int)
	for _, c := range clusters {
		for _, key := range c.Keys {
			typ, path, err := stability.ParseKey(key)
			if err != nil || typ == stability.TypeHistory {
				continue
			}
			data, err := s.readFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return 0, fmt.Errorf("session: seed: %w", err)
			}
			estimates[key] = s.est.Estimate(renderFile(path, string(data)))
		}
	}

	seeded := s.tracker.InitializeFromReferenceGraph(clusters, estimates)
	if err := s.store.Save(s.tracker); err != nil {
		return 0, fmt.Errorf("session: seed: %w", err)
	}
	s.emit(telemetry.Event{Kind: telemetry.KindTiersSeeded, Data: map[string]int{
		"clusters": len(clusters),
		"seeded":   seeded,
	}})
	s.logger.Info("tiers seeded", "clusters", len(clusters), "items", seeded)
	return seeded, nil
}

// collect gathers the rendered content and ItemInfo of every item submitted
// this turn: the selected files, every file already resting in a cached
// tier, every resident file still earning its way back out of Active, the
// supplied symbol summaries and the history. known is the snapshot's file
// list plus any selected file it missed, such as an ignored one.
func (s *Session) collect(in Input, snap snapshot.Snapshot) (map[string]string, map[string]stability.ItemInfo, []string, error) {
	contents := make(map[string]string)
	active := make(map[string]stability.ItemInfo)
	known := append([]string(nil), snap.Files...)

	add := func(key string, typ stability.ItemType, rendered string) {
		contents[key] = rendered
		active[key] = stability.ItemInfo{
			Type:          typ,
			ContentHash:   contentHash(rendered),
			TokenEstimate: s.est.Estimate(rendered),
		}
	}

	files := append([]string(nil), in.Files...)
	regraduate := s.tracker.TierConfig(stability.Active).PromotionN
	for _, it := range s.tracker.Items() {
		if it.Type != stability.TypeFile {
			continue
		}
		if it.Tier.Cached() || (it.Resident && it.N < regraduate) {
			files = append(files, it.Path())
		}
	}
	for _, path := range files {
		key := stability.FileKey(path)
		if _, done := contents[key]; done {
			continue
		}
		data, err := s.readFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("context file missing", "path", path)
				continue
			}
			return nil, nil, nil, err
		}
		add(key, stability.TypeFile, renderFile(path, string(data)))
		if !snap.Contains(path) {
			known = append(known, path)
		}
	}

	for path, summary := range in.Symbols {
		add(stability.SymbolKey(path), stability.TypeSymbol, renderSymbols(path, summary))
	}
	for i, h := range in.History {
		add(stability.HistoryKey(i), stability.TypeHistory, renderHistory(h.Role, h.Content))
	}
	return contents, active, known, nil
}

// request places every rendered item into its post-update tier. Files that
// graduated this turn or were merged back into Active are read now, since
// they were not submitted.
func (s *Session) request(in Input, tree string, contents map[string]string) (prompt.Request, error) {
	req := prompt.Request{
		SystemPrompt: in.SystemPrompt,
		Tiers:        make(map[stability.Tier][]prompt.Section),
		HistoryTiers: make(map[int]stability.Tier),
		FileTree:     tree,
		URLContext:   renderURLs(in.URLs, s.opts.URLContextTokens),
		UserPrompt:   in.Prompt,
		Images:       in.Images,
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = s.opts.SystemPrompt
	}
	for _, h := range in.History {
		req.History = append(req.History, prompt.HistoryMessage{Role: prompt.Role(h.Role), Content: h.Content})
	}

	for _, it := range s.tracker.Items() {
		content, ok := contents[it.Key]
		if !ok && inContext(it) {
			data, err := s.readFile(it.Path())
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return prompt.Request{}, err
			}
			content, ok = renderFile(it.Path(), string(data)), true
		}
		if !ok {
			continue
		}

		if it.Type == stability.TypeHistory {
			if idx, valid := stability.HistoryIndex(it.Key); valid && it.Tier.Cached() {
				req.HistoryTiers[idx] = it.Tier
			}
			continue
		}
		section := prompt.Section{Key: it.Key, Content: content}
		if it.Tier.Cached() {
			req.Tiers[it.Tier] = append(req.Tiers[it.Tier], section)
		} else {
			req.ActiveFiles = append(req.ActiveFiles, section)
		}
	}
	return req, nil
}

// inContext reports whether a file is rendered without being selected.
func inContext(it stability.TrackedItem) bool {
	return it.Type == stability.TypeFile && (it.Tier.Cached() || it.Resident)
}

func (s *Session) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.opts.WorkDir, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *Session) tierTokens() [5]int {
	var out [5]int
	for tier := stability.Active; tier <= stability.L0; tier++ {
		out[tier] = s.tracker.TierTokens(tier)
	}
	return out
}

// record writes the turn to the ledger. Ledger failures are logged and do
// not fail the turn.
func (s *Session) record(ctx context.Context, res Result) int64 {
	if s.opts.Ledger == nil {
		return 0
	}
	id, err := s.opts.Ledger.RecordTurn(ctx, ledger.TurnRecord{
		At:         time.Now(),
		TierTokens: res.TierTokens,
		Changes:    res.Changes,
	})
	if err != nil {
		s.logger.Warn("ledger write failed", "turn", res.Turn, "error", err)
		return 0
	}
	return id
}

func (s *Session) emit(evt telemetry.Event) {
	if err := s.opts.Telemetry.Emit(evt); err != nil {
		s.logger.Warn("telemetry write failed", "kind", evt.Kind, "error", err)
	}
}

// contentHash returns the hex BLAKE3 digest of content.
func contentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
