// Package recognizer extracts text lines from screenshots through a
// pluggable OCR backend.
//
// The default build links no OCR engine and New fails with ErrNoBackend;
// NewWithBackend still accepts an injected engine. Enable the Tesseract backend (cgo, libtesseract) with the
// build tag `ocr_tesseract`:
//
//	go build -tags=ocr_tesseract ./...
package recognizer
