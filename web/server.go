package web

import (
	"context"
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gobuffalo/packr/v2"
	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/akhenakh/wifittn/storage"
)

const (
	// HistoryLimit is the maximum number of positions displayed
	HistoryLimit = 50

	TimeFormat = "2006-01-02 15:04:05"
)

var (
	pathTpl = []string{"index.html"}
)

type Server struct {
	appName     string
	logger      log.Logger
	store       storage.HistoryStore
	config      Config
	FileHandler http.Handler
	Box         *packr.Box
}

type Config struct {
	// Location used to render times, defaults to local time
	Location *time.Location

	// the Key for mapbox or self hosted
	TilesKey string

	// Set to false if using MapBox
	SelfHostedMap bool

	// the URL where to point to get tiles, OpenStreetMap if empty
	TilesURL string
}

// RecordView is a stored position as displayed
type RecordView struct {
	ID    uint64  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lon"`
	Count int     `json:"ap_count"`
	Time  string  `json:"time"`
}

func NewServer(appName string, logger log.Logger, store storage.HistoryStore, cfg Config) *Server {
	logger = log.With(logger, "component", "web")
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Server{
		appName: appName,
		logger:  logger,
		config:  cfg,
		store:   store,
	}
}

// History returns the most recent positions, times rendered in the configured location
func (s *Server) History(ctx context.Context) ([]RecordView, error) {
	recs, err := s.store.Recent(ctx, HistoryLimit)
	if err != nil {
		return nil, err
	}
	return s.views(recs), nil
}

func (s *Server) views(recs []storage.PositionRecord) []RecordView {
	res := make([]RecordView, len(recs))
	for i, r := range recs {
		res[i] = RecordView{
			ID:    r.ID,
			Lat:   r.Lat,
			Lng:   r.Lng,
			Count: r.Count,
			Time:  r.Time.In(s.config.Location).Format(TimeFormat),
		}
	}
	return res
}

func (s *Server) span(r *http.Request, operationName string) (context.Context, opentracing.Span) {
	wireContext, err := opentracing.GlobalTracer().Extract(
		opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(r.Header))
	if err != nil {
		level.Debug(s.logger).Log("msg", "can't find a span", "error", err)
	}

	serverSpan := opentracing.StartSpan(
		operationName,
		ext.RPCServerOption(wireContext))
	return opentracing.ContextWithSpan(r.Context(), serverSpan), serverSpan
}

func (s *Server) HistoryQuery(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.span(r, "/api/history")
	defer span.Finish()

	w.Header().Set("Content-Type", "application/json")

	res, err := s.History(ctx)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't query history", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}

	b, err := json.Marshal(res)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't marshal json", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Write(b)
}

func (s *Server) GeoJSONQuery(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.span(r, "/api/history.geojson")
	defer span.Finish()

	w.Header().Set("Content-Type", "application/json")

	recs, err := s.store.Recent(ctx, HistoryLimit)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't query history", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	s.writeFeatures(w, recs)
}

func (s *Server) RectQuery(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.span(r, "/api/rect")
	defer span.Finish()

	rs, ok := s.store.(storage.RectSearcher)
	if !ok {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	vars := mux.Vars(r)
	urlat, err := strconv.ParseFloat(vars["urlat"], 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	urlng, err := strconv.ParseFloat(vars["urlng"], 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	bllat, err := strconv.ParseFloat(vars["bllat"], 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	bllng, err := strconv.ParseFloat(vars["bllng"], 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	recs, err := rs.RectSearch(ctx, urlat, urlng, bllat, bllng)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't query rect", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	s.writeFeatures(w, recs)
}

func (s *Server) writeFeatures(w http.ResponseWriter, recs []storage.PositionRecord) {
	fc := geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, v := range s.views(recs) {
		f := &geojson.Feature{}
		f.Properties = make(map[string]interface{})
		f.Properties["id"] = v.ID
		f.Properties["ap_count"] = v.Count
		f.Properties["time"] = v.Time

		f.Geometry = geom.NewPointFlat(geom.XY, []float64{v.Lng, v.Lat})
		fc.Features = append(fc.Features, f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}

	w.Write(b)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	if path == "" {
		path = "index.html"
	}

	// serve file normally
	if !isTpl(path) {
		s.FileHandler.ServeHTTP(w, r)
		return
	}

	ctx, span := s.span(r, "/")
	defer span.Finish()

	recs, err := s.History(ctx)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't query history", "error", err)
		http.Error(w, err.Error(), 500)
		return
	}

	p := map[string]interface{}{
		"AppName":       s.appName,
		"Records":       recs,
		"TilesURL":      s.config.TilesURL,
		"TilesKey":      s.config.TilesKey,
		"SelfHostedMap": s.config.SelfHostedMap,
	}

	tmplt := template.New(path)

	sf, err := s.Box.FindString(path)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't open template", "error", err)
		http.Error(w, err.Error(), 500)
		return
	}

	tmplt, err = tmplt.Parse(sf)
	if err != nil {
		http.Error(w, err.Error(), 500)
		level.Error(s.logger).Log("msg", "can't parse template", "error", err)
		return
	}

	ctype := mime.TypeByExtension(filepath.Ext(path))
	w.Header().Set("Content-Type", ctype)

	if err := tmplt.Execute(w, p); err != nil {
		level.Error(s.logger).Log("msg", "can't execute template", "error", err)
	}
}

func isTpl(path string) bool {
	for _, p := range pathTpl {
		if p == path {
			return true
		}
	}
	return false
}
