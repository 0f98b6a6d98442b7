// Package httpapi exposes the clip pipeline over HTTP and serves the
// rendered clips.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/logging"
	"github.com/forPelevin/hlclip/internal/types"
	"github.com/forPelevin/hlclip/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Clipper runs one clip job synchronously.
type Clipper interface {
	Clip(ctx context.Context, ref, jobID string) (usecase.Result, error)
}

type Options struct {
	Bind   string
	OutDir string
	// WriteTimeout must cover a whole job since POST /clip blocks until the
	// clip is rendered.
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

type Server struct {
	bind    string
	outDir  string
	logger  *slog.Logger
	clipper Clipper

	listener net.Listener
	server   *http.Server
}

type clipRequest struct {
	URL string `json:"url"`
}

type clipResponse struct {
	VideoURL string `json:"video_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(clipper Clipper, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		bind:    strings.TrimSpace(opts.Bind),
		outDir:  opts.OutDir,
		logger:  logger,
		clipper: clipper,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /clip", s.handleClip)
	mux.HandleFunc("OPTIONS /clip", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /", http.FileServer(clipFS{http.Dir(s.outDir)}))
	return withCORS(mux)
}

// clipFS serves finished clip files only: no directory listings and no
// partially written renders.
type clipFS struct {
	root http.FileSystem
}

func (c clipFS) Open(name string) (http.File, error) {
	if strings.HasSuffix(name, types.PartialSuffix) {
		return nil, fs.ErrNotExist
	}
	f, err := c.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	jobID := uuid.NewString()
	w.Header().Set("X-Request-Id", jobID)
	logger := s.logger.With(slog.String("job_id", jobID))

	var req clipRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.Info("rejecting clip request", slog.String("error", err.Error()))
		s.writeError(w, apperr.Wrap(apperr.KindValidation, "decode request", err))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, apperr.New(apperr.KindValidation, "decode request", "url is empty"))
		return
	}
	if err := types.ValidateSourceRef(req.URL); err != nil {
		s.writeError(w, apperr.Wrap(apperr.KindValidation, "decode request", err))
		return
	}

	logger.Info("clip requested", slog.String("url", req.URL))
	res, err := s.clipper.Clip(r.Context(), req.URL, jobID)
	if err != nil {
		attrs := []any{
			slog.String("kind", apperr.KindOf(err).String()),
			slog.String("error", err.Error()),
		}
		if diag := apperr.DiagnosticOf(err); diag != "" {
			attrs = append(attrs, slog.String("diagnostic", diag))
		}
		logger.Error("clip failed", attrs...)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, clipResponse{VideoURL: "/" + url.PathEscape(filepath.Base(res.OutputPath))})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, apperr.HTTPStatus(err), errorResponse{Error: apperr.PublicMessage(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", slog.String("error", err.Error()))
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
