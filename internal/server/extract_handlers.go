package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MeKo-Tech/chatocr/internal/pipeline"
	"github.com/MeKo-Tech/chatocr/internal/utils"
)

const (
	fieldScreenshots = "screenshot_image"
	fieldImage       = "image"

	formatJSON    = "json"
	formatText    = "text"
	formatOverlay = "overlay"

	invalidUploadMessage = "Uploaded file is either not an image or is corrupted!!"
)

// ExtractOptions are the per-request overrides accepted by the extraction
// endpoints, from form fields, query parameters or websocket messages.
type ExtractOptions struct {
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	Text      *bool    `json:"text,omitempty"`
	Format    string   `json:"format,omitempty" validate:"omitempty,oneof=json text overlay"`
}

func (o ExtractOptions) pipelineOptions() []pipeline.Option {
	var opts []pipeline.Option
	if o.Threshold != nil {
		opts = append(opts, pipeline.WithThreshold(*o.Threshold))
	}
	if o.Text != nil && !*o.Text {
		opts = append(opts, pipeline.WithoutText())
	}
	return opts
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names ("threshold") rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) validateOptions(opts ExtractOptions) error {
	err := s.validate.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "threshold":
			msgs = append(msgs, "threshold must be greater than 0 and at most 1")
		case "format":
			msgs = append(msgs, "format must be one of: json, text, overlay")
		default:
			msgs = append(msgs, fmt.Sprintf("invalid %s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// parseOptions reads threshold, text and format from the form or query.
func (s *Server) parseOptions(r *http.Request) (ExtractOptions, error) {
	var opts ExtractOptions

	if v := strings.TrimSpace(r.FormValue("threshold")); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("threshold must be a number, got %q", v)
		}
		opts.Threshold = &t
	}
	if v := strings.TrimSpace(r.FormValue("text")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("text must be true or false, got %q", v)
		}
		opts.Text = &b
	}
	opts.Format = strings.ToLower(strings.TrimSpace(r.FormValue("format")))

	return opts, s.validateOptions(opts)
}

// parseUploads decodes every uploaded screenshot. On failure it writes the
// error response itself and returns false.
func (s *Server) parseUploads(w http.ResponseWriter, r *http.Request) ([]image.Image, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, r, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, false
	}

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File[fieldScreenshots]...)
	headers = append(headers, r.MultipartForm.File[fieldImage]...)
	if len(headers) == 0 {
		s.writeErrorResponse(w, r, "No image file provided", http.StatusBadRequest)
		return nil, false
	}

	imgs := make([]image.Image, 0, len(headers))
	for _, h := range headers {
		uploadSizeBytes.Observe(float64(h.Size))
		img, err := decodeUpload(h)
		if err != nil {
			slog.Warn("Rejected upload",
				"request_id", RequestIDFromContext(r.Context()),
				"filename", h.Filename,
				"error", err)
			s.writeErrorResponse(w, r, invalidUploadMessage, http.StatusBadRequest)
			return nil, false
		}
		imgs = append(imgs, img)
	}
	return imgs, true
}

func decodeUpload(h *multipart.FileHeader) (image.Image, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := utils.DecodeImage(f)
	return img, err
}

// extractHandler runs both perception streams over each uploaded screenshot.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	imgs, ok := s.parseUploads(w, r)
	if !ok {
		extractRequestsTotal.WithLabelValues("extract", "error").Inc()
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	opts, err := s.parseOptions(r)
	if err != nil {
		extractRequestsTotal.WithLabelValues("extract", "error").Inc()
		s.writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if opts.Format == formatOverlay && !s.overlayEnabled {
		s.writeErrorResponse(w, r, "overlay output disabled", http.StatusForbidden)
		return
	}
	if opts.Format == formatOverlay && len(imgs) > 1 {
		extractRequestsTotal.WithLabelValues("extract", "error").Inc()
		s.writeErrorResponse(w, r, "overlay output supports a single image", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	results := s.processor.ProcessAll(ctx, imgs, opts.pipelineOptions()...)
	failed := false
	for _, res := range results {
		observeResult("extract", res)
		failed = failed || res.Failed()
	}

	status, code := statusSuccess, http.StatusOK
	if failed {
		status, code = statusFailed, http.StatusInternalServerError
	}
	extractRequestsTotal.WithLabelValues("extract", strings.ToLower(status)).Inc()

	slog.Info("Extraction finished",
		"request_id", RequestIDFromContext(r.Context()),
		"images", len(imgs),
		"status", status)

	switch opts.Format {
	case formatText:
		parts := make([]string, len(results))
		for i, res := range results {
			parts[i] = pipeline.ToPlainText(res)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(strings.Join(parts, "\n")))
	case formatOverlay:
		ov := pipeline.RenderOverlay(imgs[0], results[0], s.overlayColors)
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(code)
		if err := png.Encode(w, ov); err != nil {
			slog.Error("Failed to encode overlay", "error", err)
		}
	default:
		writeJSON(w, code, ExtractResponse{
			Status:    status,
			Data:      results,
			RequestID: RequestIDFromContext(r.Context()),
		})
	}
}

// detectHandler runs only the object stream and returns organized windows.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	imgs, ok := s.parseUploads(w, r)
	if !ok {
		extractRequestsTotal.WithLabelValues("detect", "error").Inc()
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	opts, err := s.parseOptions(r)
	if err != nil {
		extractRequestsTotal.WithLabelValues("detect", "error").Inc()
		s.writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	outcomes := make([]pipeline.DetectionOutcome, len(imgs))
	failed := false
	for i, img := range imgs {
		outcomes[i] = s.processor.Detect(ctx, img, opts.pipelineOptions()...)
		extractDuration.WithLabelValues("detect").Observe(outcomes[i].Duration.Seconds())
		if outcomes[i].Status == pipeline.StatusFailed {
			streamFailures.WithLabelValues("objects").Inc()
			failed = true
		}
	}

	status, code := statusSuccess, http.StatusOK
	if failed {
		status, code = statusFailed, http.StatusInternalServerError
	}
	extractRequestsTotal.WithLabelValues("detect", strings.ToLower(status)).Inc()

	writeJSON(w, code, ExtractResponse{
		Status:    status,
		Data:      outcomes,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func observeResult(kind string, res *pipeline.ImageResult) {
	extractDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	if res.Text.Status == pipeline.StatusFailed {
		streamFailures.WithLabelValues("text").Inc()
	}
	if res.Objects.Status == pipeline.StatusFailed {
		streamFailures.WithLabelValues("objects").Inc()
	}
	chatWindowsDetected.Observe(float64(len(res.Objects.Result.Windows)))
	textRegionsRecognized.Observe(float64(len(res.Text.Texts)))
}
