package preprocess

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// DecodeError indicates bytes that are not a supported raster container
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Normalize decodes raw image bytes and coerces the result to a
// canonical RGB bitmap. Paletted, grayscale, and alpha-channel sources
// all come out as *image.NRGBA so the enhancement stages see uniform
// input regardless of container format (JPEG, PNG, GIF, HEIC, PDF).
func Normalize(data []byte) (*image.NRGBA, error) {
	img, err := decode(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return imaging.Clone(img), nil
}

func decode(data []byte) (image.Image, error) {
	switch {
	case isPDF(data):
		return renderPDFPage(data)
	case isHEIC(data):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		return img, nil
	}
}

// renderPDFPage renders the first page of a PDF receipt to a bitmap.
// Most receipts are single page.
func renderPDFPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF"))
}

// isHEIC checks for the ftyp box brands used by HEIC/HEIF files, which
// Go's standard image package cannot decode
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
