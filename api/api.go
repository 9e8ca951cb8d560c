// Package api exposes the console over HTTP: snippet submission, history
// synchronization, history reset, a minimal landing page and metrics.
package api

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/furisto/console/api/auth"
	"github.com/furisto/console/delta"
	"github.com/furisto/console/event"
	"github.com/furisto/console/history"
)

// MaxSubmissionBytes caps the size of a submitted snippet. Oversized
// submissions are rejected without creating a task.
const MaxSubmissionBytes = 8192

// Executor spawns a task for a snippet and returns its id.
type Executor interface {
	Execute(code []byte) uuid.UUID
}

type Server struct {
	server *http.Server
}

func NewServer(handler http.Handler, addr string) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HandlerOptions struct {
	Log      *history.Log
	Executor Executor
	Bus      *event.Bus
	// TokenHash guards every route except /metrics.
	TokenHash []byte
	// Token is the plaintext token, baked into the landing page only.
	Token    string
	Registry *prometheus.Registry
}

type Handler struct {
	log       *history.Log
	executor  Executor
	bus       *event.Bus
	tokenHash []byte
	page      []byte
	router    *mux.Router
}

//go:embed index.html
var pageSource string

var pageTemplate = template.Must(template.New("index").Parse(pageSource))

func NewHandler(opts HandlerOptions) *Handler {
	handler := &Handler{
		log:       opts.Log,
		executor:  opts.Executor,
		bus:       opts.Bus,
		tokenHash: opts.TokenHash,
		page:      renderPage(opts.Token),
	}

	router := mux.NewRouter()
	router.Use(requestLogging)

	router.HandleFunc("/", handler.authenticated(handler.handleRoot)).Methods(http.MethodGet)
	router.HandleFunc("/history", handler.authenticated(handler.handleHistory)).Methods(http.MethodGet)
	router.HandleFunc("/code", handler.authenticated(handler.handleCode)).Methods(http.MethodPost)
	router.HandleFunc("/clear", handler.authenticated(handler.handleClear)).Methods(http.MethodPost)
	if opts.Registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	handler.router = router
	return handler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.Verify(h.tokenHash, r.URL.Query().Get("auth")) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(h.page)
}

// handleHistory answers a sync poll from a single snapshot of the log. It
// never blocks waiting for new data; the poll cadence lives in the client.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	maxLen, err := nonNegativeQueryInt(r, "len")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	version, err := nonNegativeQueryInt(r, "version")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	begin, err := nonNegativeQueryInt(r, "begin")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logVersion, logStart, buffer := h.log.Snapshot()
	resp := delta.ComputeWindow(logVersion, logStart, buffer, delta.Request{
		MaxLen:  maxLen,
		Version: version,
		Begin:   begin,
	})

	w.Header().Set("Cache-Control", "no-cache")
	w.Write(delta.Encode(resp))
}

func (h *Handler) handleCode(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > MaxSubmissionBytes {
		http.Error(w, "submission too large", http.StatusRequestEntityTooLarge)
		return
	}

	code, err := io.ReadAll(io.LimitReader(r.Body, MaxSubmissionBytes+1))
	if err != nil {
		// Truncated body; act on nothing.
		return
	}
	if len(code) > MaxSubmissionBytes {
		http.Error(w, "submission too large", http.StatusRequestEntityTooLarge)
		return
	}

	id := h.executor.Execute(code)
	slog.Debug("snippet submitted", "task_id", id, "bytes", len(code))

	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	version := h.log.Reset()
	if h.bus != nil {
		event.Publish(h.bus, event.HistoryCleared{Version: version})
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
}

func nonNegativeQueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must be non-negative", name)
	}
	return n, nil
}

func renderPage(token string) []byte {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, struct{ Token string }{Token: token}); err != nil {
		// The template is embedded and static; this cannot fail at runtime.
		panic(err)
	}
	return buf.Bytes()
}

// requestLogging logs method, path and outcome. The full URL is deliberately
// left out: the auth token travels in the query string.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		slog.Debug("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
		)
	})
}
