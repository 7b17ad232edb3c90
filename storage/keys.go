package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/golang/geo/s2"
)

const Prefix = "WT"

// valueLen lat, lng, count, time
const valueLen = 8 + 8 + 4 + 8

// RecordKey returns the history key for id, Prefix+"R"+reverse id
// so a forward iteration returns the most recent first
func RecordKey(id uint64) []byte {
	rk := make([]byte, len(Prefix)+1+8)
	copy(rk, Prefix+"R")
	copy(rk[len(Prefix)+1:], Uint64tob(math.MaxUint64-id))
	return rk
}

// RecordPrefix is the prefix shared by all history keys
func RecordPrefix() []byte {
	return []byte(Prefix + "R")
}

// ReadRecordKey returns the id stored in rk
func ReadRecordKey(rk []byte) (uint64, error) {
	if len(rk) != len(Prefix)+1+8 {
		return 0, errors.New("invalid record key length")
	}
	return math.MaxUint64 - binary.BigEndian.Uint64(rk[len(Prefix)+1:]), nil
}

// PointKey returns the geo index key for a record Prefix+"G"+cellid+reverse id
func PointKey(lat, lng float64, id uint64) []byte {
	c := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng))
	gk := make([]byte, len(Prefix)+1+8+8)
	copy(gk, Prefix+"G")
	copy(gk[len(Prefix)+1:], Uint64tob(uint64(c)))
	copy(gk[len(Prefix)+1+8:], Uint64tob(math.MaxUint64-id))
	return gk
}

// ReadPointKey returns cell, id
func ReadPointKey(pk []byte) (s2.CellID, uint64, error) {
	buf := bytes.NewBuffer(pk[len(Prefix)+1:])
	var c s2.CellID
	var rid uint64

	// read back cell
	if err := binary.Read(buf, binary.BigEndian, &c); err != nil {
		return c, 0, err
	}

	// read back id
	if err := binary.Read(buf, binary.BigEndian, &rid); err != nil {
		return c, 0, err
	}
	return c, math.MaxUint64 - rid, nil
}

// CellRange returns the geo index keys bounding the cell c
func CellRange(c s2.CellID) ([]byte, []byte) {
	start := make([]byte, len(Prefix)+1+8)
	copy(start, Prefix+"G")
	copy(start[len(Prefix)+1:], Uint64tob(uint64(c.RangeMin())))
	// stop includes every id of the last cell
	stop := make([]byte, len(Prefix)+1+8+8)
	copy(stop, Prefix+"G")
	copy(stop[len(Prefix)+1:], Uint64tob(uint64(c.RangeMax())))
	for i := len(Prefix) + 1 + 8; i < len(stop); i++ {
		stop[i] = 0xFF
	}
	return start, stop
}

// EncodeRecord returns the stored value for r, without its id
func EncodeRecord(r *PositionRecord) []byte {
	v := make([]byte, valueLen)
	binary.BigEndian.PutUint64(v[0:], math.Float64bits(r.Lat))
	binary.BigEndian.PutUint64(v[8:], math.Float64bits(r.Lng))
	binary.BigEndian.PutUint32(v[16:], uint32(r.Count))
	binary.BigEndian.PutUint64(v[20:], uint64(r.Time.UnixNano()))
	return v
}

// DecodeRecord reads back a value created by EncodeRecord
func DecodeRecord(id uint64, v []byte) (PositionRecord, error) {
	if len(v) != valueLen {
		return PositionRecord{}, errors.New("invalid record value length")
	}
	return PositionRecord{
		ID: id,
		Estimate: Estimate{
			Lat:   math.Float64frombits(binary.BigEndian.Uint64(v[0:])),
			Lng:   math.Float64frombits(binary.BigEndian.Uint64(v[8:])),
			Count: int(binary.BigEndian.Uint32(v[16:])),
		},
		Time: time.Unix(0, int64(binary.BigEndian.Uint64(v[20:]))).UTC(),
	}, nil
}
