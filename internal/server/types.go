package server

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MeKo-Tech/chatocr/internal/pipeline"
)

// Processor is what the server needs from the extraction pipeline.
// *pipeline.Driver and *pipeline.Pipeline both satisfy it.
type Processor interface {
	Process(ctx context.Context, img image.Image, opts ...pipeline.Option) *pipeline.ImageResult
	ProcessAll(ctx context.Context, imgs []image.Image, opts ...pipeline.Option) []*pipeline.ImageResult
	Detect(ctx context.Context, img image.Image, opts ...pipeline.Option) pipeline.DetectionOutcome
}

// infoProvider is implemented by processors that can describe loaded models.
type infoProvider interface {
	Info() map[string]interface{}
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	processor      Processor
	validate       *validator.Validate
	rateLimiter    *RateLimiter
	corsOrigin     string
	modelsDir      string
	maxUploadMB    int64
	timeout        time.Duration
	overlayEnabled bool
	overlayColors  pipeline.OverlayColors
	trustedProxies []netip.Prefix
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	ModelsDir      string
	OverlayEnabled bool
	TrustedProxies []string // addresses or CIDRs allowed to set forwarding headers
	RateLimit      RateLimitConfig
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ModelInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

type ModelsResponse struct {
	Models []ModelInfo             `json:"models"`
	Count  int                     `json:"count"`
	Loaded map[string]interface{} `json:"loaded,omitempty"`
}

// ExtractResponse is the envelope of /v1/extract and /v1/detect. Data holds
// the per-image results, or an error message when Status is "Failed" and
// nothing was processed.
type ExtractResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

const (
	statusSuccess = "Success"
	statusFailed  = "Failed"
)

// NewServer creates a server around an already built processor.
func NewServer(config Config, proc Processor) (*Server, error) {
	if proc == nil {
		return nil, errors.New("server requires a processor")
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 30
	}
	if config.CORSOrigin == "" {
		config.CORSOrigin = "*"
	}

	proxies, err := parseTrustedProxies(config.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		processor:      proc,
		validate:       newValidator(),
		corsOrigin:     config.CORSOrigin,
		modelsDir:      config.ModelsDir,
		maxUploadMB:    config.MaxUploadMB,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		overlayEnabled: config.OverlayEnabled,
		overlayColors:  pipeline.DefaultOverlayColors(),
		trustedProxies: proxies,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	}
	return s, nil
}

// Close releases the processor if it owns resources.
func (s *Server) Close() error {
	if c, ok := s.processor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.chain(s.healthHandler))
	mux.HandleFunc("/models", s.chain(s.modelsHandler))
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/v1/extract", s.chain(s.rateLimitMiddleware(s.extractHandler)))
	mux.HandleFunc("/v1/detect", s.chain(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/ws", s.requestIDMiddleware(s.rateLimitMiddleware(s.extractWebSocketHandler)))
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) chain(h http.HandlerFunc) http.HandlerFunc {
	return s.requestIDMiddleware(s.corsMiddleware(h))
}
