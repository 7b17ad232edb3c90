package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by an AccessPointResolver for an unknown access point
var ErrNotFound = errors.New("access point not found")

// AccessPointResolver looks up known access points, matching ids case-insensitively
type AccessPointResolver interface {
	Resolve(ctx context.Context, id string) (*AccessPoint, error)
}

// HistoryStore persists position estimates.
// Append must be safe for concurrent callers.
type HistoryStore interface {
	// Append stores e, assigning a new id and timestamp
	Append(ctx context.Context, e Estimate) (*PositionRecord, error)
	// Recent returns up to limit records, most recent first.
	// Ids are ascending with insertion, Time never decreases with the id.
	Recent(ctx context.Context, limit int) ([]PositionRecord, error)
}

// RectSearcher is implemented by stores able to query positions in a bounding box.
// The corners may be given in any order, the box is the one returned by SearchRect:
// latitudes between both corners, and the shorter longitude arc joining them,
// possibly crossing the antimeridian.
type RectSearcher interface {
	RectSearch(ctx context.Context, urlat, urlng, bllat, bllng float64) ([]PositionRecord, error)
}

// AccessPoint is a known access point
type AccessPoint struct {
	ID       string
	Lat, Lng float64
}

// Estimate is a computed device position
type Estimate struct {
	Lat, Lng float64
	// Count is the number of access points that contributed
	Count int
}

// PositionRecord is a stored Estimate
type PositionRecord struct {
	Estimate
	ID   uint64
	Time time.Time
}
