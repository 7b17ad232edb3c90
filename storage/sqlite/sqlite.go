package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	// registers the sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/akhenakh/wifittn/storage"
)

// DefaultAPTable is the table name used by WiGLE exports
const DefaultAPTable = "wiglenetwork"

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	ap_count INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DB is both a storage.HistoryStore and a storage.AccessPointResolver
type DB struct {
	db          *sql.DB
	resolveStmt string

	// orders created_at like ids
	mu sync.Mutex
}

// Open opens the sqlite database at path, creating the positions table if needed,
// apTable is the table holding the known access points (mac, lat, lon)
func Open(path, apTable string) (*DB, error) {
	if apTable == "" {
		apTable = DefaultAPTable
	}
	if !identRe.MatchString(apTable) {
		return nil, fmt.Errorf("invalid access point table name %q", apTable)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &DB{
		db:          db,
		resolveStmt: fmt.Sprintf("SELECT lat, lon FROM %s WHERE lower(mac) = lower(?)", apTable),
	}, nil
}

// OpenHistory opens the sqlite database at path to be used as a position history only
func OpenHistory(path string) (*DB, error) {
	return Open(path, DefaultAPTable)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Resolve look up id in the access point table
func (d *DB) Resolve(ctx context.Context, id string) (*storage.AccessPoint, error) {
	ap := &storage.AccessPoint{ID: id}
	err := d.db.QueryRowContext(ctx, d.resolveStmt, id).Scan(&ap.Lat, &ap.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ap, nil
}

// Append inserts e as a new position, the id is assigned by sqlite
func (d *DB) Append(ctx context.Context, e storage.Estimate) (*storage.PositionRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := &storage.PositionRecord{
		Estimate: e,
		Time:     time.Now().UTC(),
	}
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO positions (lat, lon, ap_count, created_at) VALUES (?, ?, ?, ?)",
		e.Lat, e.Lng, e.Count, r.Time)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	r.ID = uint64(id)
	return r, nil
}

// Recent returns up to limit positions, most recent first
func (d *DB) Recent(ctx context.Context, limit int) ([]storage.PositionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, lat, lon, ap_count, created_at FROM positions ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// RectSearch returns the positions inside the rect, most recent first
func (d *DB) RectSearch(ctx context.Context, urlat, urlng, bllat, bllng float64) ([]storage.PositionRecord, error) {
	minlat, maxlat, lolng, hilng, crosses := storage.RectBounds(urlat, urlng, bllat, bllng)
	lonCond := "lon BETWEEN ? AND ?"
	if crosses {
		lonCond = "(lon >= ? OR lon <= ?)"
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, lat, lon, ap_count, created_at FROM positions
		WHERE lat BETWEEN ? AND ? AND `+lonCond+`
		ORDER BY id DESC`,
		minlat, maxlat, lolng, hilng)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]storage.PositionRecord, error) {
	defer rows.Close()

	var res []storage.PositionRecord
	for rows.Next() {
		var r storage.PositionRecord
		var id int64
		if err := rows.Scan(&id, &r.Lat, &r.Lng, &r.Count, &r.Time); err != nil {
			return nil, err
		}
		r.ID = uint64(id)
		r.Time = r.Time.UTC()
		res = append(res, r)
	}
	return res, rows.Err()
}
