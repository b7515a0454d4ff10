package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
)

// DefaultMaxBodyBytes bounds the size of a sync request.
const DefaultMaxBodyBytes = 64 << 20

// ServerOptions configures a Server.
type ServerOptions struct {
	Addr         string
	MaxBodyBytes int64
}

// Server serves the sync and clone endpoints for every package of a registry.
type Server struct {
	registry *docsync.Registry
	opts     ServerOptions
	router   *mux.Router
}

// NewServer returns a server backed by registry.
func NewServer(registry *docsync.Registry, opts ServerOptions) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{registry: registry, opts: opts, router: mux.NewRouter()}
	s.router.HandleFunc(SyncPath, s.handleSync).Methods(http.MethodPost)
	s.router.HandleFunc(ClonePath, s.handleClone).Methods(http.MethodGet).Queries("package", "{package}")
	s.router.HandleFunc(ClonePath, s.handleMissingPackage).Methods(http.MethodGet)
	s.router.HandleFunc(PackagesPath, s.handlePackages).Methods(http.MethodGet)
	s.router.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{Message: "method not allowed"})
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Envelope{Message: "not found"})
	})
	s.router.Use(requestLogger)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server starting", "addr", s.opts.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		logging.Error("server stopped", logging.Err(err))
		return err
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var req model.SyncRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, err)
			return
		}
		writeError(w, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	engine, err := s.registry.Get(req.PackageName)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := engine.Sync(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, resp)
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	engine, err := s.registry.Get(mux.Vars(r)["package"])
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := engine.Clone(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, resp)
}

func (s *Server) handleMissingPackage(w http.ResponseWriter, _ *http.Request) {
	writeError(w, fmt.Errorf("%w: package parameter is required", model.ErrInvalidRequest))
}

func (s *Server) handlePackages(w http.ResponseWriter, _ *http.Request) {
	names, err := s.registry.Names()
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeOK(w, names)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestIDHeader carries the request id; an incoming value is kept.
const RequestIDHeader = "X-Request-ID"

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		logger := logging.With(logging.RequestID(id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logging.NewContext(r.Context(), logger)))

		attrs := []any{
			"method", r.Method,
			logging.Path(r.URL.Path),
			"http_status", rec.status,
			logging.Duration(time.Since(start)),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
			return
		}
		logger.Debug("request served", attrs...)
	})
}
