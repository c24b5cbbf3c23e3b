package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/region"
)

type imageJSON struct {
	Texts           []region.Text    `json:"texts"`
	TextStatus      string           `json:"text_status"`
	Detections      organizer.Result `json:"detections"`
	DetectionStatus string           `json:"detection_status"`
}

// RegisterAPISteps wires the API step definitions.
func (tc *TestContext) RegisterAPISteps(sc *godog.ScenarioContext) {
	sc.Step(`^the chat analysis server is running$`, tc.Start)
	sc.Step(`^the detector finds no chat window$`, tc.detectorFindsNoWindow)
	sc.Step(`^the detector fails with "([^"]*)"$`, tc.detectorFails)
	sc.Step(`^the recognizer fails with "([^"]*)"$`, tc.recognizerFails)

	sc.Step(`^I upload (\d+) chat screenshots? to "([^"]*)"$`, tc.uploadScreenshots)
	sc.Step(`^I upload a chat screenshot to "([^"]*)" with field "([^"]*)" and "([^"]*)" set to "([^"]*)"$`,
		tc.uploadWithOption)
	sc.Step(`^I upload a corrupted file to "([^"]*)"$`, tc.uploadCorrupted)
	sc.Step(`^I request "([^"]*)"$`, tc.get)

	sc.Step(`^the response status should be (\d+)$`, tc.statusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, tc.fieldShouldBe)
	sc.Step(`^the response should contain (\d+) results?$`, tc.resultCount)
	sc.Step(`^result (\d+) should be "Not a Screenshot"$`, tc.resultNotScreenshot)
	sc.Step(`^result (\d+) should contain (\d+) chat windows?$`, tc.resultWindows)
	sc.Step(`^window (\d+) of result (\d+) should contain (\d+) "([^"]*)" entries$`, tc.windowClassCount)
	sc.Step(`^result (\d+) should have (\d+) text lines?$`, tc.resultTexts)
	sc.Step(`^result (\d+) should have detection status "([^"]*)"$`, tc.detectionStatus)
	sc.Step(`^result (\d+) should have text status "([^"]*)"$`, tc.textStatus)
}

func (tc *TestContext) detectorFindsNoWindow() error {
	dets := region.ByClass{}
	for cls, objs := range tc.Shot.Detections {
		if cls != organizer.ClassChatWindow {
			dets[cls] = objs
		}
	}
	tc.Detector.Detections = dets
	return nil
}

func (tc *TestContext) detectorFails(msg string) error {
	tc.Detector.Err = errors.New(msg)
	return nil
}

func (tc *TestContext) recognizerFails(msg string) error {
	tc.Recognizer.Err = errors.New(msg)
	return nil
}

func (tc *TestContext) post(path string, files map[string][][]byte, fields map[string]string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, datas := range files {
		for i, data := range datas {
			fw, err := mw.CreateFormFile(field, fmt.Sprintf("upload_%d.png", i))
			if err != nil {
				return err
			}
			if _, err := fw.Write(data); err != nil {
				return err
			}
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(tc.URL(path), mw.FormDataContentType(), &body) //nolint:noctx // test client
	if err != nil {
		return err
	}
	return tc.record(resp)
}

func (tc *TestContext) screenshotPNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, tc.Shot.Image); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (tc *TestContext) uploadScreenshots(n int, path string) error {
	data, err := tc.screenshotPNG()
	if err != nil {
		return err
	}
	files := make([][]byte, n)
	for i := range files {
		files[i] = data
	}
	return tc.post(path, map[string][][]byte{"screenshot_image": files}, nil)
}

func (tc *TestContext) uploadWithOption(path, field, key, value string) error {
	data, err := tc.screenshotPNG()
	if err != nil {
		return err
	}
	return tc.post(path, map[string][][]byte{field: {data}}, map[string]string{key: value})
}

func (tc *TestContext) uploadCorrupted(path string) error {
	return tc.post(path, map[string][][]byte{"screenshot_image": {[]byte("definitely not a png")}}, nil)
}

func (tc *TestContext) get(path string) error {
	resp, err := http.Get(tc.URL(path)) //nolint:noctx // test client
	if err != nil {
		return err
	}
	return tc.record(resp)
}

func (tc *TestContext) record(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastStatusCode = resp.StatusCode
	tc.LastHeaders = resp.Header
	tc.LastBody = body
	return nil
}

func (tc *TestContext) statusShouldBe(code int) error {
	if tc.LastStatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, tc.LastStatusCode, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) fieldShouldBe(field, want string) error {
	var m map[string]interface{}
	if err := json.Unmarshal(tc.LastBody, &m); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	got, ok := m[field]
	if !ok {
		return fmt.Errorf("field %q missing in %s", field, tc.LastBody)
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("field %q: expected %q, got %q", field, want, fmt.Sprint(got))
	}
	return nil
}

func (tc *TestContext) results() ([]imageJSON, error) {
	var env struct {
		Data []imageJSON `json:"data"`
	}
	if err := json.Unmarshal(tc.LastBody, &env); err != nil {
		return nil, fmt.Errorf("cannot decode results: %w", err)
	}
	return env.Data, nil
}

func (tc *TestContext) result(n int) (imageJSON, error) {
	res, err := tc.results()
	if err != nil {
		return imageJSON{}, err
	}
	if n < 1 || n > len(res) {
		return imageJSON{}, fmt.Errorf("result %d does not exist (have %d)", n, len(res))
	}
	return res[n-1], nil
}

func (tc *TestContext) resultCount(n int) error {
	res, err := tc.results()
	if err != nil {
		return err
	}
	if len(res) != n {
		return fmt.Errorf("expected %d results, got %d", n, len(res))
	}
	return nil
}

func (tc *TestContext) resultNotScreenshot(n int) error {
	r, err := tc.result(n)
	if err != nil {
		return err
	}
	if r.Detections.Screenshot {
		return fmt.Errorf("result %d: expected %q, got %d windows", n, organizer.NotScreenshotLabel, len(r.Detections.Windows))
	}
	return nil
}

func (tc *TestContext) resultWindows(n, windows int) error {
	r, err := tc.result(n)
	if err != nil {
		return err
	}
	if !r.Detections.Screenshot || len(r.Detections.Windows) != windows {
		return fmt.Errorf("result %d: expected %d windows, got %d", n, windows, len(r.Detections.Windows))
	}
	return nil
}

func (tc *TestContext) windowClassCount(w, n, count int, class string) error {
	r, err := tc.result(n)
	if err != nil {
		return err
	}
	if w < 1 || w > len(r.Detections.Windows) {
		return fmt.Errorf("result %d has no window %d", n, w)
	}
	if got := r.Detections.Windows[w-1].Count(class); got != count {
		return fmt.Errorf("window %d: expected %d %q entries, got %d", w, count, class, got)
	}
	return nil
}

func (tc *TestContext) resultTexts(n, count int) error {
	r, err := tc.result(n)
	if err != nil {
		return err
	}
	if len(r.Texts) != count {
		return fmt.Errorf("result %d: expected %d text lines, got %d", n, count, len(r.Texts))
	}
	return nil
}

func (tc *TestContext) detectionStatus(n int, want string) error {
	r, err := tc.result(n)
	if err != nil {
		return err
	}
	if !strings.EqualFold(r.DetectionStatus, want) {
		return fmt.Errorf("result %d: expected detection status %q, got %q", n, want, r.DetectionStatus)
	}
	return nil
}

func (tc *TestContext) textStatus(n int, want string) error {
	r, err := tc.result(n)
	if err != nil {
		return err
	}
	if !strings.EqualFold(r.TextStatus, want) {
		return fmt.Errorf("result %d: expected text status %q, got %q", n, want, r.TextStatus)
	}
	return nil
}
