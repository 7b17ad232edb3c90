package ttn

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"github.com/akhenakh/wifittn/ingest"
	"github.com/akhenakh/wifittn/metrics"
	"github.com/akhenakh/wifittn/payload"
)

type Status string

const (
	// StatusIgnored no payload in the uplink
	StatusIgnored Status = "ignored"
	// StatusSuccess a position was stored
	StatusSuccess Status = "success"
	// StatusNoPosition no known access point in the payload
	StatusNoPosition Status = "no_position"
	// StatusMalformed the payload length is invalid
	StatusMalformed Status = "error_len"
	// StatusInvalid the uplink message can't be decoded
	StatusInvalid Status = "error_json"
	// StatusError the uplink could not be processed
	StatusError Status = "error"
)

// Ingester processes raw payloads
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) (*ingest.Result, error)
}

// Outcome is the result of handling one uplink
type Outcome struct {
	Status   Status    `json:"status"`
	Observed int       `json:"observed"`
	Resolved int       `json:"resolved"`
	Position *Position `json:"position,omitempty"`
}

type Position struct {
	ID    uint64    `json:"id"`
	Lat   float64   `json:"lat"`
	Lng   float64   `json:"lon"`
	Count int       `json:"ap_count"`
	Time  time.Time `json:"time"`
}

// Handler hands uplinks to an Ingester, whatever the transport
type Handler struct {
	logger log.Logger
	ing    Ingester
}

func NewHandler(logger log.Logger, ing Ingester) *Handler {
	logger = log.With(logger, "component", "ttn")
	return &Handler{
		logger: logger,
		ing:    ing,
	}
}

// HandleJSON handles a TTN v3 uplink JSON message
func (h *Handler) HandleJSON(ctx context.Context, via string, b []byte) Outcome {
	var u Uplink
	if err := json.Unmarshal(b, &u); err != nil {
		metrics.MsgReceivedCounter.WithLabelValues(via).Inc()
		level.Info(h.logger).Log("msg", "can't decode uplink message", "via", via, "error", err)
		return h.count(Outcome{Status: StatusInvalid})
	}
	return h.Handle(ctx, via, u.EndDeviceIDs.DeviceID, u.Payload())
}

// Handle handles a raw payload sent by devID
func (h *Handler) Handle(ctx context.Context, via, devID string, raw []byte) Outcome {
	metrics.MsgReceivedCounter.WithLabelValues(via).Inc()
	logger := log.With(h.logger, "uplink_id", uuid.New().String(), "via", via, "device_id", devID)

	if len(raw) == 0 {
		level.Debug(logger).Log("msg", "received uplink with empty payload")
		return h.count(Outcome{Status: StatusIgnored})
	}

	level.Debug(logger).Log("msg", "received uplink", "size", len(raw))

	res, err := h.ing.Ingest(ctx, raw)
	if errors.Is(err, payload.ErrMalformedPayload) {
		level.Info(logger).Log("msg", "malformed payload", "error", err)
		return h.count(Outcome{Status: StatusMalformed})
	}
	if err != nil {
		metrics.ErrorCounter.Inc()
		level.Error(logger).Log("msg", "can't ingest uplink", "error", err)
		return h.count(Outcome{Status: StatusError})
	}

	o := Outcome{
		Status:   StatusNoPosition,
		Observed: res.Observed,
		Resolved: res.Resolved,
	}
	if res.Record == nil {
		level.Info(logger).Log("msg", "no known access point in uplink", "observed", res.Observed)
		return h.count(o)
	}

	o.Status = StatusSuccess
	o.Position = &Position{
		ID:    res.Record.ID,
		Lat:   res.Record.Lat,
		Lng:   res.Record.Lng,
		Count: res.Record.Count,
		Time:  res.Record.Time,
	}
	return h.count(o)
}

func (h *Handler) count(o Outcome) Outcome {
	metrics.OutcomeCounter.WithLabelValues(string(o.Status)).Inc()
	return o
}
