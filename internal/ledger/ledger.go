// Package ledger records every turn's tier transitions and per-tier token
// mass in a SQL database, so cache behaviour can be reviewed after the fact.
// SQLite is the default; a shared MySQL-compatible server (such as Dolt)
// can hold the ledger for a team.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL/Dolt driver.
	_ "modernc.org/sqlite"             // Pure-Go SQLite driver.

	"github.com/papapumpkin/stratum/internal/stability"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("ledger: unknown driver")

// TurnRecord is one recorded turn.
type TurnRecord struct {
	ID int64
	At time.Time

	// TierTokens is the token mass of each tier after the turn, indexed by
	// stability.Tier.
	TierTokens [5]int

	Changes []stability.TierChange
}

// Stats summarises the whole ledger.
type Stats struct {
	Turns      int
	Promotions int
	Demotions  int
	LastTurn   time.Time
}

// Ledger is a turn ledger backed by database/sql.
type Ledger struct {
	db     *sql.DB
	driver string
}

// Open connects to the ledger database and creates the schema if needed.
// For DriverSQLite, dsn is a file path whose directory is created; for
// DriverMySQL, it is a go-sql-driver DSN.
func Open(ctx context.Context, driver, dsn string) (*Ledger, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		db, err = openSQLite(ctx, dsn)
	case DriverMySQL:
		db, err = openMySQL(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, driver: driver}, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	// SQLite has a single writer; one pooled connection avoids SQLITE_BUSY
	// between connections that each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: %s: %w", pragma, err)
		}
	}
	return db, nil
}

func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping database: %w", err)
	}
	return db, nil
}

// Driver returns the driver the ledger was opened with.
func (l *Ledger) Driver() string { return l.driver }

// Close releases the database.
func (l *Ledger) Close() error { return l.db.Close() }

// RecordTurn stores rec and its changes in one transaction and returns the
// new turn ID. A zero At is stamped with the current time.
func (l *Ledger) RecordTurn(ctx context.Context, rec TurnRecord) (int64, error) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	t := rec.TierTokens
	res, err := tx.ExecContext(ctx,
		`INSERT INTO turns (at_unix_nano, active_tokens, l3_tokens, l2_tokens, l1_tokens, l0_tokens)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.At.UnixNano(), t[stability.Active], t[stability.L3], t[stability.L2], t[stability.L1], t[stability.L0])
	if err != nil {
		return 0, fmt.Errorf("ledger: insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ledger: turn id: %w", err)
	}

	for _, c := range rec.Changes {
		promotion := 0
		if c.IsPromotion() {
			promotion = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tier_changes (turn_id, item_key, item_type, from_tier, to_tier, promotion)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, c.Key, c.Type.String(), c.From.String(), c.To.String(), promotion); err != nil {
			return 0, fmt.Errorf("ledger: insert change %s: %w", c.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger: commit: %w", err)
	}
	return id, nil
}

// RecentTurns returns up to limit turns, newest first, with their changes.
func (l *Ledger) RecentTurns(ctx context.Context, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, at_unix_nano, active_tokens, l3_tokens, l2_tokens, l1_tokens, l0_tokens
		 FROM turns ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query turns: %w", err)
	}
	var turns []TurnRecord
	for rows.Next() {
		var (
			rec TurnRecord
			at  int64
			t   [5]int
		)
		if err := rows.Scan(&rec.ID, &at, &t[stability.Active], &t[stability.L3], &t[stability.L2], &t[stability.L1], &t[stability.L0]); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ledger: scan turn: %w", err)
		}
		rec.At = time.Unix(0, at)
		rec.TierTokens = t
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("ledger: iterate turns: %w", err)
	}
	rows.Close()

	for i := range turns {
		changes, err := l.changes(ctx, turns[i].ID)
		if err != nil {
			return nil, err
		}
		turns[i].Changes = changes
	}
	return turns, nil
}

func (l *Ledger) changes(ctx context.Context, turnID int64) ([]stability.TierChange, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT item_key, item_type, from_tier, to_tier FROM tier_changes
		 WHERE turn_id = ? ORDER BY id`, turnID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query changes: %w", err)
	}
	defer rows.Close()

	var out []stability.TierChange
	for rows.Next() {
		var key, typ, from, to string
		if err := rows.Scan(&key, &typ, &from, &to); err != nil {
			return nil, fmt.Errorf("ledger: scan change: %w", err)
		}
		c := stability.TierChange{Key: key}
		if err := c.Type.UnmarshalText([]byte(typ)); err != nil {
			return nil, fmt.Errorf("ledger: change %s: %w", key, err)
		}
		if c.From, err = stability.ParseTier(from); err != nil {
			return nil, fmt.Errorf("ledger: change %s: %w", key, err)
		}
		if c.To, err = stability.ParseTier(to); err != nil {
			return nil, fmt.Errorf("ledger: change %s: %w", key, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats counts turns and transitions across the whole ledger.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	var (
		s    Stats
		last sql.NullInt64
	)
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(at_unix_nano) FROM turns`).Scan(&s.Turns, &last); err != nil {
		return Stats{}, fmt.Errorf("ledger: count turns: %w", err)
	}
	if last.Valid {
		s.LastTurn = time.Unix(0, last.Int64)
	}

	var promotions sql.NullInt64
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(promotion) FROM tier_changes`).Scan(&s.Demotions, &promotions); err != nil {
		return Stats{}, fmt.Errorf("ledger: count changes: %w", err)
	}
	s.Promotions = int(promotions.Int64)
	s.Demotions -= s.Promotions
	return s, nil
}

// Prune deletes all but the newest keep turns and returns how many turns
// were removed.
func (l *Ledger) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var cutoff sql.NullInt64
	err := l.db.QueryRowContext(ctx,
		`SELECT id FROM turns ORDER BY id DESC LIMIT 1 OFFSET ?`, keep).Scan(&cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: find prune cutoff: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM tier_changes WHERE turn_id <= ?`, cutoff.Int64); err != nil {
		return 0, fmt.Errorf("ledger: prune changes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE id <= ?`, cutoff.Int64)
	if err != nil {
		return 0, fmt.Errorf("ledger: prune turns: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger: commit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger: prune count: %w", err)
	}
	return n, nil
}
