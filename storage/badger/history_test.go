package badger

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"github.com/akhenakh/wifittn/storage"
)

func openStore(t *testing.T) (*History, func()) {
	dir, err := os.MkdirTemp("", "badger")
	require.NoError(t, err)

	opt := badger.DefaultOptions(dir)
	opt.Logger = nil

	db, err := badger.Open(opt)
	require.NoError(t, err)

	h, err := NewHistory(db)
	require.NoError(t, err)

	return h, func() {
		h.Close()
		db.Close()
		os.RemoveAll(dir)
	}
}

func TestAppendRecent(t *testing.T) {
	h, clean := openStore(t)
	defer clean()
	ctx := context.Background()

	r1, err := h.Append(ctx, storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 2})
	require.NoError(t, err)
	require.Equal(t, uint64(1), r1.ID)
	require.False(t, r1.Time.IsZero())

	r2, err := h.Append(ctx, storage.Estimate{Lat: 48.9, Lng: 2.3, Count: 1})
	require.NoError(t, err)
	require.True(t, r2.ID > r1.ID)

	res, err := h.Recent(ctx, 50)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, *r2, res[0])
	require.Equal(t, *r1, res[1])

	res, err = h.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, r2.ID, res[0].ID)
}

func TestRecentEmpty(t *testing.T) {
	h, clean := openStore(t)
	defer clean()

	res, err := h.Recent(context.Background(), 50)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestConcurrentAppend(t *testing.T) {
	h, clean := openStore(t)
	defer clean()
	ctx := context.Background()

	const count = 20
	var wg sync.WaitGroup
	ids := make(chan uint64, count)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := h.Append(ctx, storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 1})
			if err == nil {
				ids <- r.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, count)

	res, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, res, count)
	for i := 1; i < len(res); i++ {
		require.True(t, res[i-1].ID > res[i].ID)
		require.False(t, res[i-1].Time.Before(res[i].Time), "record %d is older than %d", res[i-1].ID, res[i].ID)
	}
}

func TestRectSearch(t *testing.T) {
	h, clean := openStore(t)
	defer clean()
	ctx := context.Background()

	r, err := h.Append(ctx, storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 1})
	require.NoError(t, err)
	_, err = h.Append(ctx, storage.Estimate{Lat: 44.8, Lng: 2.2, Count: 1})
	require.NoError(t, err)

	res, err := h.RectSearch(ctx, 48.83, 2.56, 48.62, 2.13)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, *r, res[0])

	res, err = h.RectSearch(ctx, 10.1, 10.1, 10.0, 10.0)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestRectSearchCorners(t *testing.T) {
	h, clean := openStore(t)
	defer clean()
	ctx := context.Background()

	paris, err := h.Append(ctx, storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 1})
	require.NoError(t, err)
	fiji, err := h.Append(ctx, storage.Estimate{Lat: 0, Lng: 179.9, Count: 1})
	require.NoError(t, err)

	tests := []struct {
		name                       string
		urlat, urlng, bllat, bllng float64
		want                       *storage.PositionRecord
	}{
		{"ordered", 48.83, 2.56, 48.62, 2.13, paris},
		{"swapped", 48.62, 2.13, 48.83, 2.56, paris},
		{"antimeridian", 1, -179.5, -1, 179.5, fiji},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := h.RectSearch(ctx, tc.urlat, tc.urlng, tc.bllat, tc.bllng)
			require.NoError(t, err)
			require.Len(t, res, 1)
			require.Equal(t, tc.want.ID, res[0].ID)
		})
	}
}
