// Package httpapi serves derived simulation artifacts over HTTP.
//
// Routes:
//
//	GET  /model/help                 configuration template
//	POST /model/dataset              full dataset for a configuration
//	POST /model/{varname}/{timeseg}  one rendered image
//	POST /model/{varname}            zip of all images for a variable
//
// POST bodies carry a JSON configuration. Responses answer 201 when
// any expensive computation ran and 200 when every artifact was
// already cached.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	arrhenius "github.com/ahurka/Arrhenius"
	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/store"
)

// maxBodyBytes caps configuration request bodies.
const maxBodyBytes = 1 << 20

// Server exposes the artifact cache over HTTP.
type Server struct {
	coord  *arrhenius.Coordinator
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server over coord.
func New(coord *arrhenius.Coordinator, opts ...Option) *Server {
	s := &Server{coord: coord}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Handler returns the route table wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /model/help", s.handleHelp)
	mux.HandleFunc("POST /model/dataset", s.handleDataset)
	mux.HandleFunc("POST /model/{varname}", s.handleArchive)
	mux.HandleFunc("POST /model/{varname}/{timeseg}", s.handleImage)
	return s.withRequestLog(mux)
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Example())
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.parseConfig(w, r)
	if !ok {
		return
	}

	dir, created, err := s.coord.EnsureDataset(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	path := filepath.Join(dir, store.DatasetFileName(cfg.RunID()))
	s.serveArtifact(w, r, path, "application/octet-stream", statusFor(created))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	variable := r.PathValue("varname")
	seg, err := strconv.Atoi(r.PathValue("timeseg"))
	if err != nil || seg < 0 {
		s.writeFault(w, r, arrhenius.FaultClient, "time segment must be a non-negative integer")
		return
	}

	cfg, ok := s.parseConfig(w, r)
	if !ok {
		return
	}

	dir, modelCreated, err := s.coord.EnsureDataset(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	imgDir, imgCreated, err := s.coord.EnsureImage(r.Context(), dir, variable, &seg, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := store.ImageFileName(cfg.RunID(), variable, seg, cfg.Scale)
	s.serveArtifact(w, r, filepath.Join(imgDir, name), "image/png",
		statusFor(modelCreated || imgCreated))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	variable := r.PathValue("varname")

	cfg, ok := s.parseConfig(w, r)
	if !ok {
		return
	}

	dir, modelCreated, err := s.coord.EnsureDataset(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	path, archiveCreated, err := s.coord.EnsureArchive(r.Context(), dir, variable, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.serveArtifact(w, r, path, "application/zip",
		statusFor(modelCreated || archiveCreated))
}

func (s *Server) parseConfig(w http.ResponseWriter, r *http.Request) (*config.Config, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeFault(w, r, arrhenius.FaultClient, "unreadable request body")
		return nil, false
	}
	cfg, err := config.Parse(body)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return cfg, true
}

// serveArtifact streams a cached artifact with the created-vs-cached
// status code.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, path, contentType string, status int) {
	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(path)))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(status)
	_, _ = io.Copy(w, f)
}

func statusFor(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
