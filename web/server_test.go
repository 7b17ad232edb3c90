package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gobuffalo/packr/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/akhenakh/wifittn/storage"
)

// memStore keeps records newest first
type memStore struct {
	recs []storage.PositionRecord
	err  error
}

func (m *memStore) Append(ctx context.Context, e storage.Estimate) (*storage.PositionRecord, error) {
	r := storage.PositionRecord{
		Estimate: e,
		ID:       uint64(len(m.recs) + 1),
		Time:     time.Date(2024, 3, 31, 14, 0, len(m.recs), 0, time.UTC),
	}
	m.recs = append([]storage.PositionRecord{r}, m.recs...)
	return &r, nil
}

func (m *memStore) Recent(ctx context.Context, limit int) ([]storage.PositionRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && len(m.recs) > limit {
		return m.recs[:limit], nil
	}
	return m.recs, nil
}

func newServer(t *testing.T, store storage.HistoryStore) *Server {
	cest := time.FixedZone("CEST", 2*60*60)

	s := NewServer("wifittnd", log.NewNopLogger(), store, Config{Location: cest})
	box := packr.New("test box", "../cmd/wifittnd/templates")
	s.Box = box
	s.FileHandler = http.FileServer(box)
	return s
}

func TestHistory(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 60; i++ {
		_, err := store.Append(context.Background(), storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 1})
		require.NoError(t, err)
	}
	s := newServer(t, store)

	res, err := s.History(context.Background())
	require.NoError(t, err)
	require.Len(t, res, HistoryLimit)
	require.Equal(t, uint64(60), res[0].ID)
	// 14:00:59 UTC is 16:00:59 CEST
	require.Equal(t, "2024-03-31 16:00:59", res[0].Time)
}

func TestHistoryQuery(t *testing.T) {
	store := &memStore{}
	_, err := store.Append(context.Background(), storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 3})
	require.NoError(t, err)
	s := newServer(t, store)

	w := httptest.NewRecorder()
	s.HistoryQuery(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res []RecordView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, []RecordView{{ID: 1, Lat: 48.8, Lng: 2.2, Count: 3, Time: "2024-03-31 16:00:00"}}, res)

	store.err = errors.New("db is gone")
	w = httptest.NewRecorder()
	s.HistoryQuery(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGeoJSONQuery(t *testing.T) {
	store := &memStore{}
	_, err := store.Append(context.Background(), storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 3})
	require.NoError(t, err)
	s := newServer(t, store)

	w := httptest.NewRecorder()
	s.GeoJSONQuery(w, httptest.NewRequest(http.MethodGet, "/api/history.geojson", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	require.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	require.Equal(t, []float64{2.2, 48.8}, fc.Features[0].Geometry.Coordinates)
}

type rectStore struct {
	memStore
}

func (r *rectStore) RectSearch(ctx context.Context, urlat, urlng, bllat, bllng float64) ([]storage.PositionRecord, error) {
	var res []storage.PositionRecord
	for _, rec := range r.recs {
		if rec.Lat >= bllat && rec.Lat <= urlat && rec.Lng >= bllng && rec.Lng <= urlng {
			res = append(res, rec)
		}
	}
	return res, nil
}

func TestRectQuery(t *testing.T) {
	store := &rectStore{}
	_, err := store.Append(context.Background(), storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 3})
	require.NoError(t, err)
	_, err = store.Append(context.Background(), storage.Estimate{Lat: 44.8, Lng: 2.2, Count: 3})
	require.NoError(t, err)

	s := newServer(t, store)
	r := mux.NewRouter()
	r.HandleFunc("/api/rect/{urlat}/{urlng}/{bllat}/{bllng}", s.RectQuery)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rect/48.83/2.56/48.62/2.13", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, strings.Count(w.Body.String(), `"Feature"`))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rect/nope/2.56/48.62/2.13", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	// memStore can't search
	s = newServer(t, &memStore{})
	r = mux.NewRouter()
	r.HandleFunc("/api/rect/{urlat}/{urlng}/{bllat}/{bllng}", s.RectQuery)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rect/48.83/2.56/48.62/2.13", nil))
	require.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestIndex(t *testing.T) {
	store := &memStore{}
	s := newServer(t, store)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Waiting for data")

	_, err := store.Append(context.Background(), storage.Estimate{Lat: 48.8, Lng: 2.2, Count: 3})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "48.80000")
	require.Contains(t, w.Body.String(), "2024-03-31 16:00:00")
}
