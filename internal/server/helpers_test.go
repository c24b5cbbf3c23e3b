package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/chatocr/internal/pipeline"
	"github.com/MeKo-Tech/chatocr/internal/region"
	"github.com/MeKo-Tech/chatocr/internal/testutil"
)

type upload struct {
	field    string
	filename string
	data     []byte
}

func sampleTexts() []region.Text {
	return []region.Text{
		{Text: "see you at eight", Box: region.NewBox(220, 120, 360, 140)},
		{Text: "sounds good", Box: region.NewBox(40, 240, 150, 260)},
	}
}

func newTestServer(t *testing.T, det pipeline.ObjectDetector, rec pipeline.TextRecognizer, mutate func(*Config)) *Server {
	t.Helper()
	driver, err := pipeline.NewDriver(det, rec, pipeline.DefaultDriverConfig())
	require.NoError(t, err)

	cfg := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     5,
		ModelsDir:      t.TempDir(),
		OverlayEnabled: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg, driver)
	require.NoError(t, err)
	return s
}

// chatServer returns a server whose fakes describe a synthetic chat screenshot.
func chatServer(t *testing.T, mutate func(*Config)) (*Server, testutil.ChatScreenshot, *testutil.StaticDetector, *testutil.StaticRecognizer) {
	t.Helper()
	shot := testutil.GenerateChatScreenshot(400, 600, 4)
	det := &testutil.StaticDetector{Detections: shot.Detections}
	rec := &testutil.StaticRecognizer{Texts: sampleTexts()}
	return newTestServer(t, det, rec, mutate), shot, det, rec
}

func multipartRequest(t *testing.T, target string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}
