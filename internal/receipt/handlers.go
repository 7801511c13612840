package receipt

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/receipt-ocr/internal/extraction"
	"github.com/zombor/receipt-ocr/internal/preprocess"
	"github.com/zombor/receipt-ocr/internal/scanning"
	"github.com/zombor/receipt-ocr/internal/source"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

type scanRequest struct {
	ImageURL string `json:"imageUrl"`
}

type scanResponse struct {
	Text    string            `json:"text"`
	Fields  extraction.Fields `json:"fields"`
	Success bool              `json:"success"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}

type batchRequest struct {
	ImageURLs []string `json:"imageUrls"`
}

type batchItemResponse struct {
	ImageURL string            `json:"imageUrl"`
	Text     string            `json:"text,omitempty"`
	Fields   extraction.Fields `json:"fields,omitempty"`
	Error    string            `json:"error,omitempty"`
	Success  bool              `json:"success"`
}

type batchResponse struct {
	Results []batchItemResponse `json:"results"`
	Success bool                `json:"success"`
}

// scanStatus maps a pipeline error to an HTTP status. Input problems
// (bad references, unfetchable URLs, undecodable bytes) are the
// caller's fault; engine failures are ours.
func scanStatus(err error) int {
	var decodeErr *source.DecodeError
	var fetchErr *source.FetchError
	var imageErr *preprocess.DecodeError
	var recErr *scanning.RecognitionError

	switch {
	case errors.As(err, &decodeErr), errors.As(err, &fetchErr), errors.As(err, &imageErr):
		return http.StatusBadRequest
	case errors.As(err, &recErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeScanError(w http.ResponseWriter, err error) {
	writeJSON(w, scanStatus(err), errorResponse{Error: err.Error(), Success: false})
}

// handleScan processes a single image reference
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Success: false})
		return
	}
	if req.ImageURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "imageUrl is required", Success: false})
		return
	}

	result, err := s.service.ProcessImage(req.ImageURL)
	if err != nil {
		slog.Error("Error processing image", "error", err)
		writeScanError(w, err)
		return
	}

	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Text:    result.Scan.Text,
		Fields:  result.Scan.Fields,
		Success: true,
	})
}

// handleScanBatch processes multiple image references. The envelope
// always reports success; each item carries its own outcome.
func (s *Server) handleScanBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Success: false})
		return
	}
	if len(req.ImageURLs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "imageUrls is required", Success: false})
		return
	}

	items := s.service.ProcessBatch(req.ImageURLs)

	results := make([]batchItemResponse, len(items))
	for i, item := range items {
		if item.Err != nil {
			results[i] = batchItemResponse{
				ImageURL: item.Source,
				Error:    item.Err.Error(),
				Success:  false,
			}
			continue
		}
		results[i] = batchItemResponse{
			ImageURL: item.Source,
			Text:     item.Text,
			Fields:   item.Fields,
			Success:  true,
		}
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: results, Success: true})
}

// handleGetScan returns a single scan record
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	scan, err := s.service.GetScan(id)
	if err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, scan)
}

// handleListScans returns all recorded scans
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if scans == nil {
		scans = []*Scan{}
	}

	writeJSON(w, http.StatusOK, scans)
}

// handleDeleteScan deletes a scan and its archived image
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteScan(id); err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetScanImage returns the archived image bytes for a scan
func (s *Server) handleGetScanImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	data, err := s.service.GetScanImage(id)
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// handleHealth reports service liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "receipt-ocr",
		"version": s.version,
	})
}
