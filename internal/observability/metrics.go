package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audifi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the status surface.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "audifi",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	handshakeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "audifi",
			Subsystem: "session",
			Name:      "handshake_duration_seconds",
			Help:      "Time from the first READY? to an accepted YES!.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
		},
	)
	handshakeAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audifi",
			Subsystem: "session",
			Name:      "handshake_attempts_total",
			Help:      "READY? queries sent across completed handshakes.",
		},
	)
	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audifi",
			Subsystem: "session",
			Name:      "retries_total",
			Help:      "Protocol wait retries by stage and reason.",
		},
		[]string{"stage", "reason"},
	)
	tracks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audifi",
			Subsystem: "stream",
			Name:      "tracks_total",
			Help:      "Playlist entries by outcome.",
		},
		[]string{"result"},
	)
	chunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audifi",
			Subsystem: "stream",
			Name:      "chunks_total",
			Help:      "Pull cycles answered.",
		},
	)
	payloadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audifi",
			Subsystem: "stream",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes written to the device.",
		},
	)
	chunkShortfall = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audifi",
			Subsystem: "stream",
			Name:      "chunk_shortfall_bytes_total",
			Help:      "Bytes declared in chunk headers but not sent because the track ended.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			handshakeDuration,
			handshakeAttempts,
			retries,
			tracks,
			chunks,
			payloadBytes,
			chunkShortfall,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordHandshake(attempts int, duration time.Duration) {
	RegisterMetrics()
	handshakeAttempts.Add(float64(attempts))
	handshakeDuration.Observe(duration.Seconds())
}

func RecordRetry(stage, reason string) {
	RegisterMetrics()
	retries.WithLabelValues(stage, reason).Inc()
}

// Track outcomes.
const (
	TrackStreamed = "streamed"
	TrackSkipped  = "skipped"
	TrackFailed   = "failed"
)

func RecordTrack(result string) {
	RegisterMetrics()
	tracks.WithLabelValues(result).Inc()
}

func RecordChunk(declared, sent int) {
	RegisterMetrics()
	chunks.Inc()
	payloadBytes.Add(float64(sent))
	if declared > sent {
		chunkShortfall.Add(float64(declared - sent))
	}
}
