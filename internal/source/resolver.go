package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DecodeError indicates an input that claimed to carry inline image data
// but could not be decoded
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError indicates a network failure or non-success status while
// retrieving a remote image
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch image from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config holds resolver settings. The gateway list is ordered; only the
// first entry is used to resolve ipfs:// references, the remainder are
// documented mirrors.
type Config struct {
	Gateways     []string
	FetchTimeout time.Duration
}

// DefaultConfig returns the stock gateway allow-list and fetch timeout
func DefaultConfig() Config {
	return Config{
		Gateways: []string{
			"https://ipfs.io/ipfs/",
			"https://w3s.link/ipfs/",
			"https://gateway.pinata.cloud/ipfs/",
		},
		FetchTimeout: 30 * time.Second,
	}
}

// Resolver turns an image reference (raw base64, data URL, ipfs:// CID,
// or HTTP/HTTPS URL) into raw image bytes
type Resolver struct {
	config Config
	client *http.Client
}

// NewResolver creates a new Resolver, filling unset config fields with
// defaults
func NewResolver(config Config) *Resolver {
	defaults := DefaultConfig()
	if len(config.Gateways) == 0 {
		config.Gateways = defaults.Gateways
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	return &Resolver{
		config: config,
		client: &http.Client{Timeout: config.FetchTimeout},
	}
}

// Resolve classifies the input string and produces the raw image bytes.
// Classification order matters: the data URL prefix and the http/ipfs
// scheme checks must run before the raw base64 fallback, since a bare
// base64 payload has no shape of its own.
func (r *Resolver) Resolve(input string) ([]byte, error) {
	switch {
	case strings.HasPrefix(input, "data:image/"):
		return decodeDataURL(input)
	case !strings.HasPrefix(input, "http") && !strings.HasPrefix(input, "ipfs") && !strings.HasPrefix(input, "data"):
		data, err := base64.StdEncoding.DecodeString(input)
		if err != nil {
			return nil, &DecodeError{Reason: "failed to decode raw base64 image", Err: err}
		}
		return data, nil
	default:
		return r.fetch(r.GatewayURL(input))
	}
}

// GatewayURL converts an ipfs:// reference into an HTTP URL on the first
// configured gateway. Other URLs pass through unchanged.
func (r *Resolver) GatewayURL(url string) string {
	if cid, ok := strings.CutPrefix(url, "ipfs://"); ok {
		return r.config.Gateways[0] + cid
	}
	return url
}

// decodeDataURL extracts and decodes the base64 tail of a data URL.
// The ",base64," marker is preferred when present; otherwise the payload
// starts after the first comma.
func decodeDataURL(input string) ([]byte, error) {
	var payload string
	if _, tail, ok := strings.Cut(input, ",base64,"); ok {
		payload = tail
	} else if _, tail, ok := strings.Cut(input, ","); ok {
		payload = tail
	} else {
		return nil, &DecodeError{Reason: "data URL has no payload separator"}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "failed to decode base64 image", Err: err}
	}
	return data, nil
}

// fetch retrieves the image over HTTP with the configured timeout
func (r *Resolver) fetch(url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return data, nil
}
