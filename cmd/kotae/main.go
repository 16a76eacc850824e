// Package main is the Kotae CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cache"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/orchestrator"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/internal/rerank"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/stream"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first
// looks for config.yaml in the current directory (for development); if that
// exists it is used. Returns the config and the path that was actually
// loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (cache tiers, routing, retrieval scores)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if components.FAQWatcher != nil {
		if err := components.FAQWatcher.Start(watchCtx); err != nil {
			logger.Warn("FAQ watcher failed to start", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Orchestrator,
		components.Store,
		components.Cache,
		components.Index,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	components.Cache.Persist()
	if cfg.Storage.VectorIndexPath != "" && components.Index != nil {
		if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	studentID := fs.String("student", "", "student ID for personal timetable questions")
	streamFlag := fs.Bool("stream", false, "stream the answer as it is generated")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}

	req := models.AskRequest{Question: question, StudentID: *studentID}
	if *streamFlag {
		if err := askStreamViaHTTP(*serverURL, req); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	resp, err := askViaHTTP(*serverURL, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp.Answer)
	if resp.Cached {
		fmt.Fprintf(os.Stderr, "(cached, %dms)\n", resp.QueryTime)
	} else {
		fmt.Fprintf(os.Stderr, "(%dms)\n", resp.QueryTime)
	}
}

func askViaHTTP(serverURL string, req models.AskRequest) (*models.AskResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// askStreamViaHTTP prints streamed answer text as SSE events arrive.
func askStreamViaHTTP(serverURL string, req models.AskRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			fmt.Println()
			return nil
		}
		var event struct {
			Text  string `json:"text"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		if event.Error != "" {
			return fmt.Errorf("stream error: %s", event.Error)
		}
		fmt.Print(event.Text)
	}
	fmt.Println()
	return scanner.Err()
}

// ingestChunk is one entry in an ingest file.
type ingestChunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// runIngest embeds knowledge chunks from a JSON file and adds them to the
// vector index, then saves the index snapshot.
func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <chunks.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read chunks file: %v\n", err)
		os.Exit(1)
	}
	var input []ingestChunk
	if err := json.Unmarshal(data, &input); err != nil {
		fmt.Printf("Failed to parse chunks file: %v\n", err)
		os.Exit(1)
	}
	if len(input) == 0 {
		fmt.Println("No chunks to ingest")
		return
	}

	embedder := newEmbedder(cfg, logger)
	defer embedder.Close()

	idx, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		fmt.Printf("Failed to create index: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()
	if cfg.Storage.VectorIndexPath != "" {
		if err := idx.Load(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Printf("Failed to load existing index: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	chunks := make([]*models.Chunk, 0, len(input))
	vectors := make([][]float32, 0, len(input))
	for i, in := range input {
		if strings.TrimSpace(in.Text) == "" {
			continue
		}
		id := in.ID
		if id == "" {
			id = fmt.Sprintf("chunk-%d", idx.Size()+i)
		}
		vec, err := embedder.Embed(ctx, in.Text)
		if err != nil {
			fmt.Printf("Embedding failed for %s: %v\n", id, err)
			os.Exit(1)
		}
		chunks = append(chunks, &models.Chunk{ID: id, Text: in.Text, Metadata: in.Metadata})
		vectors = append(vectors, vec)
	}
	if err := idx.Add(ctx, chunks, vectors); err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := idx.Save(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Printf("Index save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Ingested %d chunk(s), index size is now %d\n", len(chunks), idx.Size())
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for _, key := range []string{"vector_index_size", "cache_entries", "cache_hits", "cache_misses", "disk_usage_bytes"} {
			if v, ok := status[key]; ok {
				fmt.Printf("%-20s %v\n", key+":", v)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store        session.Store
	Embedder     embedding.Embedder
	Index        vector.Index
	Cache        *cache.Cache
	FAQWatcher   *cache.FAQWatcher
	Orchestrator *orchestrator.Orchestrator
}

func (c *Components) Close() {
	if c.FAQWatcher != nil {
		c.FAQWatcher.Stop()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

// newEmbedder returns the ONNX embedder when the model loads, otherwise the
// deterministic mock so the service still works without a model file.
func newEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using mock embeddings",
			zap.String("model_path", cfg.Embedding.ModelPath), zap.Error(err))
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}
	return onnxEmbedder
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := session.NewSQLiteStore(cfg.Storage.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	embedder := newEmbedder(cfg, logger)

	index, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := index.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized", zap.Int("size", index.Size()))

	answerCache := cache.New(
		time.Duration(cfg.Cache.TTLHours)*time.Hour,
		cfg.Cache.MaxEntries,
		cfg.Cache.FuzzyThreshold,
		cache.WithLogger(logger),
		cache.WithSnapshotPath(cfg.Storage.CacheSnapshotPath),
		cache.WithPersistEvery(cfg.Cache.PersistEvery),
	)
	if err := answerCache.LoadSnapshot(); err != nil {
		logger.Warn("cache snapshot load failed", zap.Error(err))
	}

	var faqWatcher *cache.FAQWatcher
	if cfg.Storage.FAQPath != "" {
		faq, err := cache.LoadFAQFile(cfg.Storage.FAQPath)
		if err != nil {
			logger.Warn("FAQ file load failed", zap.String("path", cfg.Storage.FAQPath), zap.Error(err))
		} else {
			answerCache.SeedFAQ(faq)
		}
		faqWatcher = cache.NewFAQWatcher(cfg.Storage.FAQPath, answerCache, logger)
	}

	engineOpts := []retrieval.Option{retrieval.WithLogger(logger)}
	if cfg.Rerank.Endpoint != "" {
		engineOpts = append(engineOpts, retrieval.WithReranker(
			rerank.NewHTTPReranker(cfg.Rerank.Endpoint, cfg.Rerank.Model, rerank.WithLogger(logger)),
		))
	}
	engine := retrieval.NewEngine(index, embedder, cfg.Retrieval, engineOpts...)

	router := provider.NewRouter(cfg.Providers, logger)

	orch := orchestrator.New(
		answerCache,
		intent.NewClassifier(intent.DefaultRules()),
		engine,
		router,
		orchestrator.WithSessionStore(store),
		orchestrator.WithLogger(logger),
		orchestrator.WithStreamOptions(stream.Options{
			Buffer:      cfg.Stream.BufferSize,
			SendTimeout: time.Duration(cfg.Stream.WorkerTimeoutSeconds) * time.Second,
		}),
	)

	return &Components{
		Store:        store,
		Embedder:     embedder,
		Index:        index,
		Cache:        answerCache,
		FAQWatcher:   faqWatcher,
		Orchestrator: orch,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Campus question answering service

Usage:
  kotae server [flags]            Start the HTTP server
  kotae ask [flags] <question>    Ask a question via a running server
  kotae ingest [flags] <file>     Add knowledge chunks to the vector index
  kotae status [flags]            Show service status
  kotae version                   Show version
  kotae help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging (cache tiers, routing, retrieval scores)

Ask Flags:
  --server string    Server URL (default: http://localhost:8080)
  --student string   Student ID for personal timetable questions
  --stream           Stream the answer as it is generated

Ingest Flags:
  --config string    Config file path

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ask "Where is the library?"
  kotae ask --student S123 --stream "what is my schedule today"
  kotae ingest knowledge.json
  kotae status --output json`)
}
