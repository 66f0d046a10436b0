package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/compatspectre/internal/checker"
	"github.com/ppiankov/compatspectre/internal/metrics"
	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/ppiankov/compatspectre/pkg/config"
	"github.com/spf13/cobra"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	opts := newRunOptions()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API and Prometheus metrics",
		Long: `Start an HTTP server exposing the analysis engine:

  GET  /healthz       liveness and checker circuit state
  POST /v1/analyze    {"services": [...]} -> report
  POST /v1/strategy   {"services": [...]} -> report + rollout strategy
  GET  /metrics       Prometheus metrics

The registry is reloaded from the configured source on every request.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.cfg)
		},
	}

	opts.bindRegistryFlags(cmd)
	opts.bindAnalysisFlags(cmd)
	cmd.Flags().IntVar(&opts.cfg.ServerPort, "port", opts.cfg.ServerPort, "Port to serve on")
	return cmd
}

// runServe starts the HTTP server and blocks until SIGINT/SIGTERM
func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open registry source: %w", err)
	}
	defer func() { _ = closeSource() }()

	recorder := metrics.New()
	api := newAPIServer(cfg, source, newChecker(cfg, recorder), recorder)

	addr := ":" + strconv.Itoa(cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	url := "http://localhost:" + strconv.Itoa(cfg.ServerPort)
	fmt.Fprintf(os.Stderr, "Serving compatibility API for %s at %s (Ctrl+C to stop)\n", source.Name(), url)
	slog.Debug("api server started", slog.String("url", url), slog.String("source", source.Name()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

type apiServer struct {
	cfg      *config.Config
	source   registry.Source
	checker  *checker.Resilient
	recorder *metrics.Recorder
}

type analyzeRequest struct {
	Services []string `json:"services"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Checker string `json:"checker_circuit"`
}

func newAPIServer(cfg *config.Config, source registry.Source, chk *checker.Resilient, recorder *metrics.Recorder) *apiServer {
	return &apiServer{cfg: cfg, source: source, checker: chk, recorder: recorder}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze(false))
	mux.HandleFunc("POST /v1/strategy", s.handleAnalyze(true))
	mux.Handle("GET /metrics", s.recorder.Handler())
	return withRequestID(mux)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version,
		Checker: s.checker.State(),
	})
}

func (s *apiServer) handleAnalyze(withStrategy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := w.Header().Get(requestIDHeader)
		logger := slog.With(slog.String("request_id", requestID))

		var req analyzeRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, requestID, fmt.Errorf("invalid request body: %w", err))
			return
		}

		snapshot, err := s.source.Load(r.Context())
		if err != nil {
			logger.Warn("registry load failed", slog.String("error", err.Error()))
			writeError(w, http.StatusServiceUnavailable, requestID, fmt.Errorf("failed to load registry: %w", err))
			return
		}

		names := resolveServices(s.cfg, req.Services, snapshot)
		if len(names) == 0 {
			writeError(w, http.StatusBadRequest, requestID, errors.New("no services to analyze"))
			return
		}

		engine := newEngine(s.cfg, snapshot, s.checker, s.recorder)
		var (
			report   *models.Report
			strategy *models.RecommendedStrategy
		)
		if withStrategy {
			rep, rec := engine.RecommendStrategy(r.Context(), names)
			report, strategy = rep, &rec
		} else {
			report = engine.Analyze(r.Context(), names)
		}

		logger.Debug("analysis served",
			slog.Int("services", len(names)),
			slog.Bool("strategy", withStrategy),
			slog.Duration("elapsed", time.Since(started)),
		)
		writeJSON(w, http.StatusOK, buildOutput(s.source.Name(), snapshot, len(names), report, strategy, started))
	}
}

// withRequestID propagates X-Request-ID, generating one when absent
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to write response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, requestID string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: requestID})
}
