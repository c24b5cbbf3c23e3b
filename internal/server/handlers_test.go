package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/testutil"
)

func TestNewServer_RequiresProcessor(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	assert.Error(t, err)
}

func TestNewServer_Defaults(t *testing.T) {
	s := newTestServer(t, nil, nil, func(c *Config) {
		c.MaxUploadMB = 0
		c.TimeoutSec = 0
		c.CORSOrigin = ""
	})
	assert.Equal(t, int64(50), s.maxUploadMB)
	assert.Equal(t, "*", s.corsOrigin)
	assert.Nil(t, s.rateLimiter)
	assert.NoError(t, s.Close())
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)

	w = serve(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestModelsHandler(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)
	modelPath := models.ResolveModelPath(s.modelsDir, models.TypeDetection, models.DetectorModel)
	require.NoError(t, os.MkdirAll(filepath.Dir(modelPath), 0o750))
	require.NoError(t, os.WriteFile(modelPath, []byte("onnx"), 0o600))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, len(models.ListAvailableModels()), resp.Count)
	assert.Nil(t, resp.Loaded, "a bare driver does not describe loaded models")

	byName := map[string]ModelInfo{}
	for _, m := range resp.Models {
		byName[m.Name] = m
	}
	assert.True(t, byName["chat-detector"].Available)
	assert.Equal(t, modelPath, byName["chat-detector"].Path)
	assert.False(t, byName["chat-detector-labels"].Available)
}

func TestMetricsEndpoint(t *testing.T) {
	s, shot, _, _ := chatServer(t, nil)
	req := multipartRequest(t, "/v1/extract", []upload{{fieldImage, "a.png", testutil.EncodePNG(t, shot.Image)}}, nil)
	require.Equal(t, http.StatusOK, serve(s, req).Code)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chatocr_extract_requests_total")
	assert.Contains(t, w.Body.String(), "chatocr_chat_windows_detected")
}
