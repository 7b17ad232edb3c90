package ingest

import (
	"context"
	"errors"
	"fmt"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/wifittn/locate"
	"github.com/akhenakh/wifittn/metrics"
	"github.com/akhenakh/wifittn/payload"
	"github.com/akhenakh/wifittn/storage"
)

type Config struct {
	// magnitude used for 0 RSSI readings, 0 means locate.DefaultZeroMagnitude
	ZeroMagnitude float64
}

// Pipeline decodes, resolves, estimates and stores one uplink payload
type Pipeline struct {
	logger    log.Logger
	resolver  storage.AccessPointResolver
	store     storage.HistoryStore
	estimator locate.Estimator
}

// Result of one ingestion, Record is nil when no position was computed
type Result struct {
	Observed int
	Resolved int
	Record   *storage.PositionRecord
}

func NewPipeline(logger log.Logger, resolver storage.AccessPointResolver, store storage.HistoryStore, cfg Config) *Pipeline {
	logger = log.With(logger, "component", "pipeline")
	return &Pipeline{
		logger:    logger,
		resolver:  resolver,
		store:     store,
		estimator: locate.Estimator{ZeroMagnitude: cfg.ZeroMagnitude},
	}
}

// Ingest handles a raw payload, errors wrapping payload.ErrMalformedPayload are client errors,
// others are resolver or store faults, in both cases nothing is stored
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) (*Result, error) {
	obs, err := payload.Decode(raw)
	if err != nil {
		return nil, err
	}

	res := &Result{Observed: len(obs)}
	rs := make([]locate.Resolved, 0, len(obs))
	for _, o := range obs {
		ap, err := p.resolver.Resolve(ctx, o.ID)
		if errors.Is(err, storage.ErrNotFound) {
			metrics.LookupCounter.WithLabelValues(metrics.ResultUnknown).Inc()
			level.Debug(p.logger).Log("msg", "unknown access point", "mac", o.ID, "rssi", o.RSSI)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("can't resolve access point %s: %w", o.ID, err)
		}
		metrics.LookupCounter.WithLabelValues(metrics.ResultFound).Inc()
		level.Debug(p.logger).Log("msg", "known access point", "mac", o.ID, "rssi", o.RSSI, "latitude", ap.Lat, "longitude", ap.Lng)

		rs = append(rs, locate.Resolved{Lat: ap.Lat, Lng: ap.Lng, RSSI: o.RSSI})
	}
	res.Resolved = len(rs)

	if len(rs) == 0 {
		level.Debug(p.logger).Log("msg", "no known access point", "observed", res.Observed)
		return res, nil
	}

	e, ok := p.estimator.Estimate(rs)
	if !ok {
		return res, nil
	}

	r, err := p.store.Append(ctx, *e)
	if err != nil {
		return nil, fmt.Errorf("can't store position: %w", err)
	}
	metrics.InsertCounter.Inc()
	res.Record = r

	level.Info(p.logger).Log(
		"msg", "position stored",
		"id", r.ID,
		"latitude", r.Lat,
		"longitude", r.Lng,
		"observed", res.Observed,
		"resolved", res.Resolved,
	)
	return res, nil
}
