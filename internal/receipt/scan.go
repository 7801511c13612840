package receipt

import (
	"time"

	"github.com/zombor/receipt-ocr/internal/extraction"
)

// Scan represents one completed OCR scan
type Scan struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Text      string            `json:"text"`
	Fields    extraction.Fields `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

// CachedResult holds the recognition output stored per image content
// hash, so a re-submitted image skips the OCR engine
type CachedResult struct {
	Text   string            `json:"text"`
	Fields extraction.Fields `json:"fields"`
}

// ItemResult is the outcome for one input of a batch. Either Text and
// Fields are set, or Err is.
type ItemResult struct {
	Source string
	Text   string
	Fields extraction.Fields
	Err    error
}
