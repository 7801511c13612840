package scanning

import (
	"fmt"
	"image"
)

// RecognitionError wraps a failure from an OCR engine
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognition failed: %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Engine defines the interface for OCR text recognition
type Engine interface {
	// Recognize extracts the text visible in the bitmap. The language
	// hints are engine-specific codes; an empty slice means the default
	// multilingual set.
	Recognize(img image.Image, languages []string) (string, error)
	// Close releases engine resources
	Close() error
}

// DefaultLanguages is the full multilingual set requested for every
// scan. Receipts carry no language declaration, so breadth is traded
// for latency.
var DefaultLanguages = []string{
	"eng", "spa", "fra", "deu", "ita", "por", "nld", "pol", "rus",
	"chi_sim", "chi_tra", "jpn", "kor", "ara", "hin", "tha", "tur",
	"heb", "grc", "ukr", "ron", "ces", "hun", "hrv", "slv", "srp",
	"bul", "cat", "dan", "fin", "gle", "glg", "eus", "afr", "swa",
}
