package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/janekbaraniewski/codexswitch/internal/core"
	"github.com/janekbaraniewski/codexswitch/internal/usagecache"
)

// Row is one recorded snapshot.
type Row struct {
	Profile              string
	FetchedAt            time.Time
	Status               core.SummaryStatus
	Message              string
	PlanType             string
	PrimaryUsedPercent   *float64
	SecondaryUsedPercent *float64
	CreditsBalance       string
}

// Source is the slice of the usage coordinator the recorder listens to.
type Source interface {
	OnUpdate(fn func()) (unsubscribe func())
	GetAllSummaries(profiles []core.Profile) map[string]usagecache.SummaryView
}

type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening DB: %w", err)
	}

	r := NewRecorder(db)
	if err := r.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Recorder) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usage_snapshots (
			profile TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			plan_type TEXT,
			primary_used_percent REAL,
			secondary_used_percent REAL,
			credits_balance TEXT,
			UNIQUE(profile, fetched_at)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_usage_snapshots_profile ON usage_snapshots(profile, fetched_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// Record stores every entry not recorded yet and returns how many were new.
func (r *Recorder) Record(ctx context.Context, entries []core.CachedEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, e := range entries {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO usage_snapshots (
				profile, fetched_at, status, message, plan_type,
				primary_used_percent, secondary_used_percent, credits_balance
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ProfileName,
			e.FetchedAt.UnixMilli(),
			string(e.Summary.Status),
			nullable(e.Summary.Message),
			nullableString(e.Summary.PlanType),
			nullableFloat(windowUsed(e.Summary, true)),
			nullableFloat(windowUsed(e.Summary, false)),
			nullableString(creditsBalance(e.Summary)),
		)
		if err != nil {
			return 0, fmt.Errorf("history: insert snapshot: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}
	return inserted, nil
}

// Recent returns up to limit snapshots for profile, newest first.
func (r *Recorder) Recent(ctx context.Context, profile string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT profile, fetched_at, status, message, plan_type,
			primary_used_percent, secondary_used_percent, credits_balance
		FROM usage_snapshots
		WHERE profile = ?
		ORDER BY fetched_at DESC
		LIMIT ?
	`, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row                Row
			fetchedAt          int64
			status             string
			message, plan, bal sql.NullString
			primary, secondary sql.NullFloat64
		)
		if err := rows.Scan(&row.Profile, &fetchedAt, &status, &message, &plan, &primary, &secondary, &bal); err != nil {
			return nil, fmt.Errorf("history: scan snapshot: %w", err)
		}
		row.FetchedAt = time.UnixMilli(fetchedAt)
		row.Status = core.SummaryStatus(status)
		row.Message = message.String
		row.PlanType = plan.String
		row.CreditsBalance = bal.String
		if primary.Valid {
			row.PrimaryUsedPercent = &primary.Float64
		}
		if secondary.Valid {
			row.SecondaryUsedPercent = &secondary.Float64
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Prune deletes snapshots older than maxAge.
func (r *Recorder) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := r.now().Add(-maxAge).UnixMilli()
	res, err := r.db.ExecContext(ctx, `DELETE FROM usage_snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// Subscribe records the cached summaries of profiles() after every cache
// update until the returned function is called.
func (r *Recorder) Subscribe(src Source, profiles func() []core.Profile) (unsubscribe func()) {
	return src.OnUpdate(func() {
		views := src.GetAllSummaries(profiles())
		entries := make([]core.CachedEntry, 0, len(views))
		for _, v := range views {
			entries = append(entries, v.CachedEntry)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].ProfileName < entries[j].ProfileName })
		if _, err := r.Record(context.Background(), entries); err != nil {
			log.Printf("history: %v", err)
		}
	})
}

func windowUsed(s core.Summary, primary bool) *float64 {
	if s.RateLimit == nil {
		return nil
	}
	w := s.RateLimit.SecondaryWindow
	if primary {
		w = s.RateLimit.PrimaryWindow
	}
	if w == nil {
		return nil
	}
	return w.UsedPercent
}

func creditsBalance(s core.Summary) *string {
	if s.Credits == nil {
		return nil
	}
	return s.Credits.Balance
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
