package workspace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// ServerOption configures the emulator handler.
type ServerOption func(*server)

// WithToken requires every request to carry "Authorization: Bearer <token>".
func WithToken(token string) ServerOption {
	return func(s *server) { s.token = token }
}

// WithServerLogger sets the request logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *server) { s.logger = logger }
}

type server struct {
	mem    *Memory
	token  string
	logger *slog.Logger
}

// NewServer returns an http.Handler serving the dashboards API from mem.
func NewServer(mem *Memory, opts ...ServerOption) http.Handler {
	s := &server{mem: mem, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewMux()
	r.Use(middleware.Recoverer, s.logRequests)
	if s.token != "" {
		r.Use(s.authenticate)
	}

	r.Route(dashboardsPath, func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/{id}", s.get)
		r.Patch("/{id}", s.update)
		r.Delete("/{id}", s.trash)
	})
	r.Get(exportPath, s.export)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, &APIError{StatusCode: http.StatusNotFound, ErrorCode: "ENDPOINT_NOT_FOUND", Message: "No API found for '" + r.Method + " " + r.URL.Path + "'"})
	})
	return r
}

// Serve runs handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		logger.Info("workspace emulator listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Debug("shutting down workspace emulator")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

func (s *server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token != s.token {
			writeError(w, &APIError{StatusCode: http.StatusUnauthorized, ErrorCode: CodeUnauthenticated, Message: "Invalid access token."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	dashboards, err := s.mem.ListDashboards(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Dashboards: dashboards})
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	var req Dashboard
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := s.mem.CreateDashboard(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	d, err := s.mem.GetDashboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) update(w http.ResponseWriter, r *http.Request) {
	var req Dashboard
	if !decodeBody(w, r, &req) {
		return
	}
	req.DashboardID = chi.URLParam(r, "id")
	d, err := s.mem.UpdateDashboard(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) trash(w http.ResponseWriter, r *http.Request) {
	if err := s.mem.TrashDashboard(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *server) export(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, invalidArgument("path is required"))
		return
	}
	if f := r.URL.Query().Get("format"); f != "" && f != "SOURCE" {
		writeError(w, invalidArgument("unsupported export format %s", f))
		return
	}
	content, err := s.mem.Export(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{
		Content:  base64.StdEncoding.EncodeToString(content),
		FileType: "lvdash.json",
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, invalidArgument("malformed request: %v", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var (
		nf  *NotFoundError
		api *APIError
	)
	switch {
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{ErrorCode: CodeNotFound, Message: nf.Error()})
	case errors.As(err, &api):
		writeJSON(w, api.StatusCode, errorBody{ErrorCode: api.ErrorCode, Message: api.Message})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{ErrorCode: CodeInternal, Message: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
