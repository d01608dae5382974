// Package store archives published snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/tburn/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNoHistory is returned by History when nothing has been archived.
var ErrNoHistory = errors.New("store: no archived snapshots")

// Archive is a write-mostly history of snapshots. It also serves as a
// daemon sink.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive database at the given path.
func Open(dbPath string) (*Archive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening archive db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Name implements daemon.Sink.
func (a *Archive) Name() string { return "archive" }

// Close closes the archive database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Publish stores every enabled metric of snap, absent ones as NULL, plus the
// peak list at the time of the snapshot.
func (a *Archive) Publish(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	at := snap.At.Unix()
	day := snap.At.Format("2006-01-02")
	home := snap.Home.ID

	for _, key := range snap.Enabled {
		var value sql.NullFloat64
		if v := snap.Value(key); v != nil {
			value = sql.NullFloat64{Float64: *v, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO snapshots
			(at, day, home_id, key, value) VALUES (?, ?, ?, ?, ?)`,
			at, day, home, string(key), value)
		if err != nil {
			return fmt.Errorf("archiving %s: %w", key, err)
		}
	}

	if snap.Peak != nil {
		_, err = tx.ExecContext(ctx, "DELETE FROM peaks WHERE home_id = ? AND at = ?", home, at)
		if err != nil {
			return err
		}
		for i, hour := range snap.Peak.Dates {
			if i >= len(snap.Peak.Consumptions) {
				break
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO peaks
				(at, home_id, rank, hour, consumption) VALUES (?, ?, ?, ?, ?)`,
				at, home, i+1, hour.UTC().Format(time.RFC3339), snap.Peak.Consumptions[i])
			if err != nil {
				return fmt.Errorf("archiving peak: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DaySummary is the last snapshot archived on one local day.
type DaySummary struct {
	Day    string
	At     time.Time
	Values map[model.MetricKey]*float64
	Peak   *model.PeakAttrs
}

// History returns the last archived snapshot of each of the most recent
// days, newest first.
func (a *Archive) History(ctx context.Context, days int) ([]DaySummary, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := a.db.QueryContext(ctx, `SELECT s.day, s.at, s.home_id, s.key, s.value
		FROM snapshots s
		JOIN (SELECT day, MAX(at) AS at FROM snapshots GROUP BY day ORDER BY day DESC LIMIT ?) l
		  ON s.day = l.day AND s.at = l.at
		ORDER BY s.day DESC`, days)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []DaySummary
	homes := make(map[string]string) // day -> home_id
	for rows.Next() {
		var day, home, key string
		var at int64
		var value sql.NullFloat64
		if err := rows.Scan(&day, &at, &home, &key, &value); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Day != day {
			out = append(out, DaySummary{
				Day:    day,
				At:     time.Unix(at, 0),
				Values: make(map[model.MetricKey]*float64),
			})
			homes[day] = home
		}
		var v *float64
		if value.Valid {
			v = model.Float(value.Float64)
		}
		out[len(out)-1].Values[model.MetricKey(key)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoHistory
	}

	for i := range out {
		peak, err := a.peaksAt(ctx, homes[out[i].Day], out[i].At.Unix())
		if err != nil {
			return nil, err
		}
		out[i].Peak = peak
	}
	return out, nil
}

func (a *Archive) peaksAt(ctx context.Context, home string, at int64) (*model.PeakAttrs, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT hour, consumption FROM peaks
		WHERE home_id = ? AND at = ? ORDER BY rank`, home, at)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var attrs model.PeakAttrs
	for rows.Next() {
		var hour string
		var c float64
		if err := rows.Scan(&hour, &c); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, hour)
		if err != nil {
			return nil, fmt.Errorf("parsing peak hour %q: %w", hour, err)
		}
		attrs.Dates = append(attrs.Dates, t)
		attrs.Consumptions = append(attrs.Consumptions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(attrs.Dates) == 0 {
		return nil, nil
	}
	return &attrs, nil
}

// SnapshotCount returns the number of distinct archived snapshots.
func (a *Archive) SnapshotCount(ctx context.Context) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT at) FROM snapshots").Scan(&count)
	return count, err
}
