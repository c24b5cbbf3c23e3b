package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatocr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatocr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Extraction metrics
	extractRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatocr_extract_requests_total",
			Help: "Total number of extraction requests",
		},
		[]string{"type", "status"}, // type: extract, detect, websocket
	)

	extractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatocr_extract_duration_seconds",
			Help:    "Per-image extraction duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"type"},
	)

	streamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatocr_stream_failures_total",
			Help: "Number of failed perception streams",
		},
		[]string{"stream"}, // stream: text, objects
	)

	chatWindowsDetected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatocr_chat_windows_detected",
			Help:    "Number of chat windows found per image",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	textRegionsRecognized = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatocr_text_regions_recognized",
			Help:    "Number of text regions recognized per image",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatocr_rate_limit_hits_total",
			Help: "Total number of rate-limited requests",
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatocr_upload_size_bytes",
			Help:    "Size of uploaded screenshots in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatocr_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatocr_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
