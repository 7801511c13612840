package receipt

import (
	"net/http"
)

// Server handles HTTP requests for the OCR API
type Server struct {
	service *Service
	version string
	mux     *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, version string) *Server {
	return NewServerWithMux(service, version, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, version string, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		version: version,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/ocr/batch", s.handleScanBatch)
	s.mux.HandleFunc("POST /api/ocr", s.handleScan)

	s.mux.HandleFunc("GET /api/scans/{id}/image", s.handleGetScanImage)
	s.mux.HandleFunc("GET /api/scans/{id}", s.handleGetScan)
	s.mux.HandleFunc("DELETE /api/scans/{id}", s.handleDeleteScan)
	s.mux.HandleFunc("GET /api/scans", s.handleListScans)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the server's full handler chain including CORS, for
// callers that manage the http.Server lifecycle themselves
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	})
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
