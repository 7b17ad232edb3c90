package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ViaLabel          = "via"
	ReceivedViaHook   = "webhook"
	ReceivedViaMQTT   = "mqtt"
	ReceivedViaTTNSDK = "ttnv2"

	ResultLabel   = "result"
	ResultFound   = "found"
	ResultUnknown = "unknown"

	StatusLabel = "status"
)

var (
	MsgReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifittn",
			Name:      "received_msg_total",
			Help:      "The total number of received uplinks",
		},
		[]string{ViaLabel},
	)

	OutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifittn",
			Name:      "outcome_total",
			Help:      "The total number of handled uplinks by outcome",
		},
		[]string{StatusLabel},
	)

	LookupCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wifittn",
			Name:      "lookup_total",
			Help:      "The total number of access point lookups",
		},
		[]string{ResultLabel},
	)

	ErrorCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wifittn",
			Name:      "error_total",
			Help:      "The total number of errors occurring",
		},
	)

	InsertCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wifittn",
			Name:      "insert_total",
			Help:      "The total number of inserts in db",
		},
	)
)
