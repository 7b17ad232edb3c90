package badger

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v2"

	"github.com/akhenakh/wifittn/storage"
)

// sequence bandwidth, ids lost on restart are acceptable
const seqBandwidth = 100

var seqKey = []byte(storage.Prefix + "S")

// History is a storage.HistoryStore on top of badger
type History struct {
	*badger.DB
	seq *badger.Sequence

	// guards id and time assignment
	mu sync.Mutex
}

func NewHistory(db *badger.DB) (*History, error) {
	seq, err := db.GetSequence(seqKey, seqBandwidth)
	if err != nil {
		return nil, err
	}
	return &History{DB: db, seq: seq}, nil
}

// Close releases the id sequence, the DB is owned by the caller
func (h *History) Close() error {
	return h.seq.Release()
}

// Append is storing e with a new id, both in the history and the geo index
func (h *History) Append(ctx context.Context, e storage.Estimate) (*storage.PositionRecord, error) {
	h.mu.Lock()
	// badger sequences start at 0
	n, err := h.seq.Next()
	now := time.Now().UTC()
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	txn := h.NewTransaction(true)
	defer txn.Discard()

	r := &storage.PositionRecord{
		Estimate: e,
		ID:       n + 1,
		Time:     now,
	}
	v := storage.EncodeRecord(r)

	// storing R
	if err := txn.SetEntry(badger.NewEntry(storage.RecordKey(r.ID), v)); err != nil {
		return nil, err
	}

	// storing G
	if err := txn.SetEntry(badger.NewEntry(storage.PointKey(r.Lat, r.Lng, r.ID), v)); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// Recent returns up to limit records, most recent first
func (h *History) Recent(ctx context.Context, limit int) ([]storage.PositionRecord, error) {
	var res []storage.PositionRecord
	err := h.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = limit
		if opts.PrefetchSize <= 0 {
			opts.PrefetchSize = 10
		}
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := storage.RecordPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(res) >= limit {
				break
			}

			item := it.Item()
			id, err := storage.ReadRecordKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := storage.DecodeRecord(id, v)
			if err != nil {
				return err
			}
			res = append(res, r)
		}
		return nil
	})

	return res, err
}

// RectSearch returns all records contained in the rect, grouped by cell
func (h *History) RectSearch(ctx context.Context, urlat, urlng, bllat, bllng float64) ([]storage.PositionRecord, error) {
	rect, cu := storage.RectCovering(urlat, urlng, bllat, bllng)
	var res []storage.PositionRecord

	err := h.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, c := range cu {
			start, stop := storage.CellRange(c)
			for it.Seek(start); it.Valid(); it.Next() {
				item := it.Item()
				if bytes.Compare(item.Key(), stop) > 0 {
					break
				}
				c, id, err := storage.ReadPointKey(item.KeyCopy(nil))
				if err != nil {
					return err
				}
				if !rect.ContainsPoint(c.Point()) {
					continue
				}
				v, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				r, err := storage.DecodeRecord(id, v)
				if err != nil {
					return err
				}
				res = append(res, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
