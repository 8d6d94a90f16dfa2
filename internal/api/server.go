package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/auth"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/pkg/logger"
)

const maxRequestBody = 1 << 20

// Invoker is the dispatcher surface the server needs.
type Invoker interface {
	List() []action.Entry
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
	Network() network.Network
}

// History reads stored invocations.
type History interface {
	ListLatest(ctx context.Context, limit int) ([]action.Invocation, error)
}

// RequestObserver records served requests.
type RequestObserver interface {
	ObserveHTTPRequest(handler, method string, status int, d time.Duration)
}

// Server exposes the dispatcher over REST.
type Server struct {
	addr         string
	invoker      Invoker
	history      History
	auth         *auth.Service
	observer     RequestObserver
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
}

// Option customises a Server.
type Option func(*Server)

// WithHistory enables GET /api/v1/invocations.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithAuth requires bearer tokens.
func WithAuth(a *auth.Service) Option {
	return func(s *Server) { s.auth = a }
}

// WithRequestObserver records request metrics.
func WithRequestObserver(o RequestObserver) Option {
	return func(s *Server) { s.observer = o }
}

// WithTimeouts sets the read and write timeouts of the listener.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout, s.writeTimeout = read, write
	}
}

// NewServer builds a server listening on addr.
func NewServer(addr string, invoker Invoker, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		invoker:      invoker,
		readTimeout:  15 * time.Second,
		writeTimeout: 2 * time.Minute,
		logger:       logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/actions", s.instrument("list_actions", s.handleListActions))
	mux.Handle("POST /api/v1/actions/{name}", s.instrument("invoke_action", s.handleInvoke))
	mux.Handle("GET /api/v1/invocations", s.instrument("list_invocations", s.handleListInvocations))

	var h http.Handler = mux
	if s.auth != nil {
		h = s.auth.Middleware(mux)
	}
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("/", h)
	return root
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("api listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type actionView struct {
	Name        string          `json:"name"`
	Provider    string          `json:"provider"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

type listActionsResponse struct {
	Network network.Network `json:"network"`
	Actions []actionView    `json:"actions"`
}

func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	entries := s.invoker.List()
	out := listActionsResponse{Network: s.invoker.Network(), Actions: make([]actionView, 0, len(entries))}
	for _, e := range entries {
		out.Actions = append(out.Actions, actionView{
			Name:        e.Name,
			Provider:    e.Provider,
			Description: e.Description,
			Schema:      e.Schema.Raw(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type invokeRequest struct {
	Args map[string]any `json:"args"`
}

type invokeResponse struct {
	Result string `json:"result"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req invokeRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "read request body"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "request body must be a JSON object"))
			return
		}
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}

	result, err := s.invoker.Invoke(r.Context(), name, req.Args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{Result: result})
}

func (s *Server) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "invocation history is not configured"))
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, xerrors.Validation("invalid query", xerrors.FieldError{Field: "limit", Message: "must be a positive integer"}))
			return
		}
		limit = parsed
	}
	records, err := s.history.ListLatest(r.Context(), limit)
	if err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list invocations"))
		return
	}
	if records == nil {
		records = []action.Invocation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invocations": records})
}

func (s *Server) instrument(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		if s.observer != nil {
			s.observer.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext rejects requests once the root context is done.
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "server is shutting down"))
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
