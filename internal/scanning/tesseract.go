package scanning

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the Engine interface using a local Tesseract
// installation via gosseract. A fresh client is created per call; the
// factory is a seam for tests.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a new Tesseract Engine instance
func NewTesseract() *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient}
}

// Recognize runs Tesseract over the bitmap with the given trained-data
// languages
func (t *Tesseract) Recognize(img image.Image, languages []string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", &RecognitionError{Engine: "tesseract", Err: fmt.Errorf("encoding bitmap: %w", err)}
	}

	if len(languages) == 0 {
		languages = DefaultLanguages
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(languages...); err != nil {
		return "", &RecognitionError{Engine: "tesseract", Err: fmt.Errorf("setting languages: %w", err)}
	}
	// Receipts use columns; keep the spacing Tesseract sees
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", &RecognitionError{Engine: "tesseract", Err: fmt.Errorf("setting variable: %w", err)}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", &RecognitionError{Engine: "tesseract", Err: fmt.Errorf("setting image: %w", err)}
	}

	text, err := client.Text()
	if err != nil {
		return "", &RecognitionError{Engine: "tesseract", Err: err}
	}
	return text, nil
}

// Close releases engine resources. Tesseract clients are per-call, so
// there is nothing to release here.
func (t *Tesseract) Close() error {
	return nil
}
