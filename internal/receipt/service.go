package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/receipt-ocr/internal/extraction"
	"github.com/zombor/receipt-ocr/internal/preprocess"
	"github.com/zombor/receipt-ocr/internal/scanning"
)

// Resolver turns an image reference into raw image bytes
type Resolver interface {
	Resolve(input string) ([]byte, error)
}

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Options holds service tuning knobs
type Options struct {
	// Languages passed to the OCR engine; empty means the engine's
	// default multilingual set
	Languages []string

	// BatchWorkers bounds concurrent batch item processing
	BatchWorkers int
}

// Service runs the scan pipeline: resolve, normalize, enhance,
// recognize, extract
type Service struct {
	db          DB
	resolver    Resolver
	engine      scanning.Engine
	storage     Storage // optional archive, may be nil
	options     Options
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time
// source
func NewService(db DB, resolver Resolver, engine scanning.Engine, storage Storage, options Options) *Service {
	return NewServiceWithDeps(db, resolver, engine, storage, options, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for
// testing
func NewServiceWithDeps(db DB, resolver Resolver, engine scanning.Engine, storage Storage, options Options, idGen IDGenerator, timeSrc TimeSource) *Service {
	if options.BatchWorkers <= 0 {
		options.BatchWorkers = 4
	}
	return &Service{
		db:          db,
		resolver:    resolver,
		engine:      engine,
		storage:     storage,
		options:     options,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Result is the outcome of one processed image
type Result struct {
	Scan   *Scan
	Cached bool
}

// ProcessImage runs the full pipeline for one input, records the scan
// in history, and archives the image bytes when an archive is
// configured
func (s *Service) ProcessImage(input string) (*Result, error) {
	data, text, fields, cached, err := s.scan(input)
	if err != nil {
		return nil, err
	}

	scan := &Scan{
		ID:        s.idGenerator.Generate(),
		Source:    input,
		Text:      text,
		Fields:    fields,
		CreatedAt: s.timeSource.Now(),
	}

	if s.storage != nil {
		if err := s.storage.Save(scan.ID, data); err != nil {
			// The scan result is still good without its archive copy
			slog.Warn("Failed to archive image", "id", scan.ID, "error", err)
		}
	}

	if err := s.db.SaveScan(scan); err != nil {
		return nil, fmt.Errorf("saving scan: %w", err)
	}

	return &Result{Scan: scan, Cached: cached}, nil
}

// ProcessBatch runs the pipeline for each input independently on a
// bounded worker pool. One item's failure never affects its siblings;
// results come back in input order and batch items are not recorded in
// history.
func (s *Service) ProcessBatch(inputs []string) []ItemResult {
	results := make([]ItemResult, len(inputs))
	sem := make(chan struct{}, s.options.BatchWorkers)
	var wg sync.WaitGroup

	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			_, text, fields, _, err := s.scan(input)
			if err != nil {
				slog.Error("Batch item failed", "index", i, "error", err)
				results[i] = ItemResult{Source: input, Err: err}
				return
			}
			results[i] = ItemResult{Source: input, Text: text, Fields: fields}
		}(i, input)
	}

	wg.Wait()
	return results
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all recorded scans
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// DeleteScan removes a scan and its archived image
func (s *Service) DeleteScan(id string) error {
	if _, err := s.db.GetScan(id); err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if s.storage != nil {
		if err := s.storage.Delete(id); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete archived image", "id", id, "error", err)
		}
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan: %w", err)
	}
	return nil
}

// GetScanImage retrieves the archived image bytes for a scan
func (s *Service) GetScanImage(id string) ([]byte, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("image archive is not configured")
	}
	if _, err := s.db.GetScan(id); err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	data, err := s.storage.Get(id)
	if err != nil {
		return nil, fmt.Errorf("getting archived image: %w", err)
	}
	return data, nil
}

// scan resolves the input and produces recognized text plus extracted
// fields, consulting the content-hash cache around the expensive OCR
// call
func (s *Service) scan(input string) (data []byte, text string, fields extraction.Fields, cached bool, err error) {
	data, err = s.resolver.Resolve(input)
	if err != nil {
		return nil, "", nil, false, err
	}

	hash := sha256.Sum256(data)
	key := hex.EncodeToString(hash[:])

	if hit, cacheErr := s.db.GetCached(key); cacheErr == nil && hit != nil {
		slog.Info("Recognition cache hit", "key", key)
		return data, hit.Text, hit.Fields, true, nil
	}

	bitmap, err := preprocess.Normalize(data)
	if err != nil {
		return nil, "", nil, false, err
	}

	enhanced := preprocess.Enhance(bitmap)

	text, err = s.engine.Recognize(enhanced, s.options.Languages)
	if err != nil {
		return nil, "", nil, false, err
	}

	fields = extraction.Extract(text)

	if cacheErr := s.db.PutCached(key, &CachedResult{Text: text, Fields: fields}); cacheErr != nil {
		// A cold cache is not worth failing the scan over
		slog.Warn("Failed to cache recognition result", "key", key, "error", cacheErr)
	}

	return data, text, fields, false, nil
}
