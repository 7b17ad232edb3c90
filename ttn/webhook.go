package ttn

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-kit/kit/log/level"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/akhenakh/wifittn/metrics"
)

// MaxWebhookSize is the maximum accepted webhook body size
const MaxWebhookSize = 64 << 10

func statusCode(s Status) int {
	switch s {
	case StatusMalformed, StatusInvalid:
		return http.StatusBadRequest
	case StatusError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// ServeHTTP is the TTN v3 webhook endpoint
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	operationName := "/ttn-webhook"
	wireContext, err := opentracing.GlobalTracer().Extract(
		opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(r.Header))
	if err != nil {
		level.Debug(h.logger).Log("msg", "can't find a span", "error", err)
	}

	serverSpan := opentracing.StartSpan(
		operationName,
		ext.RPCServerOption(wireContext))
	defer serverSpan.Finish()
	ctx := opentracing.ContextWithSpan(r.Context(), serverSpan)

	var o Outcome
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookSize))
	if err != nil {
		level.Info(h.logger).Log("msg", "can't read webhook body", "error", err)
		metrics.MsgReceivedCounter.WithLabelValues(metrics.ReceivedViaHook).Inc()
		o = h.count(Outcome{Status: StatusInvalid})
	} else {
		o = h.HandleJSON(ctx, metrics.ReceivedViaHook, b)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(o.Status))
	if err := json.NewEncoder(w).Encode(o); err != nil {
		level.Error(h.logger).Log("msg", "can't write webhook response", "error", err)
	}
}
