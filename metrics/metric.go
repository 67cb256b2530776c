package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "DistMatrix"

var (
	Registry = prometheus.NewRegistry()

	GRPCClientMetrics = grpcprometheus.NewClientMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = namespace
		},
	)

	TransferRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "requests_total",
			Help:      "store requests issued for unplaced partitions",
		},
		[]string{"backend"},
	)

	TransferCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "completions_total",
			Help:      "store completions drained, by result",
		},
		[]string{"backend", "result"},
	)

	TransferBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "payload_bytes_total",
			Help:      "serialized payload bytes sent to workers",
		},
		[]string{"backend"},
	)

	DistributeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "distribute",
			Name:      "duration_seconds",
			Help:      "latency of partition plus transfer",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"backend", "result"},
	)

	// not labelled by matrix, matrix ids are random and short lived
	PartitionEntries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "partition",
			Name:      "entries",
			Help:      "entries assigned per partition pass",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

func init() {
	// histogram descriptors must exist before registration
	GRPCClientMetrics.EnableClientHandlingTimeHistogram(
		func(h *prometheus.HistogramOpts) {
			h.Namespace = namespace
		},
	)
	Registry.MustRegister(
		GRPCClientMetrics,
		TransferRequests,
		TransferCompletions,
		TransferBytes,
		DistributeDuration,
		PartitionEntries,
	)
}
