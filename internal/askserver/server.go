// Package askserver exposes the question-answering pipeline over HTTP:
// the browser-extension JSON API, operational endpoints and the MCP endpoint.
package askserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_vidqa/internal/engine"
	"github.com/anatolykoptev/go_vidqa/internal/toolutil"
)

// maxBodyBytes bounds the /api/askyou request body.
const maxBodyBytes = 64 << 10

// Asker answers a question about a video.
type Asker interface {
	Ask(ctx context.Context, videoURL, question string) (engine.AskResult, error)
}

// HistoryReader lists recent asks.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]engine.AskRecord, error)
}

// Config wires the server's dependencies.
type Config struct {
	Asker       Asker
	History     HistoryReader // nil disables /api/history
	MCP         *mcp.Server   // nil disables /mcp
	CORSOrigins []string
	Version     string
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	cfg    Config
	router *mux.Router
}

// New builds the router.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, router: mux.NewRouter()}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/askyou", s.askYou).Methods(http.MethodPost)
	api.HandleFunc("/history", s.history).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.metrics).Methods(http.MethodGet)

	if cfg.MCP != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return cfg.MCP }, nil)
		s.router.PathPrefix("/mcp").Handler(h)
	}
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return cors(s.cfg.CORSOrigins, s.router)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type askResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) askYou(w http.ResponseWriter, r *http.Request) {
	var in engine.AskInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		slog.Debug("askyou: bad body", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, askResponse{Error: toolutil.ErrMissingField.Error()})
		return
	}
	in, err := toolutil.NormalizeAskInput(in)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, askResponse{Error: err.Error()})
		return
	}

	res, err := s.cfg.Asker.Ask(r.Context(), in.VideoURL, in.Question)
	if err != nil {
		status, msg := toolutil.Describe(err)
		writeJSON(w, status, askResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Response: res.Answer})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSON(w, http.StatusNotFound, askResponse{Error: "History is disabled."})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.cfg.History.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("history: list failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, askResponse{Error: "Failed to read history."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asks": recs})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) metrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(engine.FormatMetrics()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", slog.Any("error", err))
	}
}
