package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/receipt-ocr/internal/receipt"
	"github.com/zombor/receipt-ocr/internal/scanning"
	"github.com/zombor/receipt-ocr/internal/source"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// splitList parses a comma separated flag value into trimmed entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-ocr")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "receipt-ocr.db", "Database file path")
		archivePath  = fs.StringLong("archive", "", "Image archive directory (empty disables archiving)")
		engineType   = fs.StringLong("engine", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		languages    = fs.StringLong("languages", "", "Comma separated tesseract language codes (empty uses the default multilingual set)")
		gateways     = fs.StringLong("ipfs-gateways", "", "Comma separated IPFS gateway URLs (empty uses the defaults)")
		batchWorkers = fs.IntLong("batch-workers", 4, "Concurrent workers for batch requests")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR engine based on type
	var engine scanning.Engine
	switch *engineType {
	case "tesseract":
		slog.Info("Initializing Tesseract engine...")
		engine = scanning.NewTesseract()
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini engine...", "model", *geminiModel)
		engine, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama engine...", "url", *ollamaURL, "model", *ollamaModel)
		engine, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid engine type", "type", *engineType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}
	defer engine.Close()

	// Initialize image archive when configured
	var store receipt.Storage
	if *archivePath != "" {
		slog.Info("Initializing image archive...", "path", *archivePath)
		localStore, err := receipt.NewLocalStorage(*archivePath)
		if err != nil {
			slog.Error("Failed to initialize image archive", "error", err)
			os.Exit(1)
		}
		store = localStore
	}

	// Initialize source resolver
	resolverConfig := source.DefaultConfig()
	if g := splitList(*gateways); len(g) > 0 {
		resolverConfig.Gateways = g
	}
	resolver := source.NewResolver(resolverConfig)

	// Initialize service
	service := receipt.NewService(db, resolver, engine, store, receipt.Options{
		Languages:    splitList(*languages),
		BatchWorkers: *batchWorkers,
	})

	server := receipt.NewServer(service, version)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting server", "address", fmt.Sprintf("http://localhost%s", addr), "engine", *engineType)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
