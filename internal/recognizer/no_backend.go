//go:build !ocr_tesseract

package recognizer

func newDefaultBackend(Options) (Backend, error) { return nil, ErrNoBackend }
