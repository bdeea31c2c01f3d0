package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"terrainmesh/internal/config"
	"terrainmesh/internal/mesh"
	"terrainmesh/internal/store"
	"terrainmesh/internal/terrain"
)

type Server struct {
	cfg       *config.Config
	generator *terrain.Generator
	store     store.Store
	httpSrv   *http.Server
	logger    *log.Logger
}

func New(cfg *config.Config, generator *terrain.Generator, meshes store.Store) *Server {
	return &Server{
		cfg:       cfg,
		generator: generator,
		store:     meshes,
		logger:    log.New(log.Writer(), "server ", log.LstdFlags|log.Lmicroseconds),
	}
}

// Handler returns the HTTP routes served by Run.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /meshes", s.handleListMeshes)
	mux.HandleFunc("POST /meshes", s.handleGenerate)
	mux.HandleFunc("GET /meshes/{id}", s.handleGetMesh)
	mux.HandleFunc("GET /meshes/{id}/obj", s.handleGetOBJ)
	mux.HandleFunc("GET /meshes/{id}/preview.png", s.handleGetPreview)
	mux.HandleFunc("DELETE /meshes/{id}", s.handleDeleteMesh)
	mux.HandleFunc("POST /seed", s.handleRandomSeed)
	mux.HandleFunc("GET /height", s.handleHeight)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Server.GenerateOnStart {
		if _, err := s.generate(ctx, nil); err != nil {
			return fmt.Errorf("initial generation: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.ListenAddress, s.cfg.Server.HTTPPort)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("HTTP server listening on %s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout.Duration()
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// generate builds a mesh (with seed when non-nil) and stores it.
func (s *Server) generate(ctx context.Context, seed *int64) (*mesh.Mesh, error) {
	var (
		m   *mesh.Mesh
		err error
	)
	if seed != nil {
		m, err = s.generator.GenerateSeed(ctx, *seed)
	} else {
		m, err = s.generator.Generate(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(m); err != nil {
		return nil, fmt.Errorf("store mesh: %w", err)
	}
	return m, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleListMeshes(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type generateRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	m, err := s.generate(r.Context(), req.Seed)
	if err != nil {
		s.logger.Printf("generate mesh: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/meshes/"+m.ID.String())
	writeJSON(w, http.StatusCreated, m.Summary())
}

func (s *Server) handleGetMesh(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMesh(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := m.WriteJSON(w); err != nil {
		s.logger.Printf("write mesh %s: %v", m.ID, err)
	}
}

func (s *Server) handleGetOBJ(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMesh(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "model/obj")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", m.ID.String()+".obj"))
	if err := m.WriteOBJ(w); err != nil {
		s.logger.Printf("write obj %s: %v", m.ID, err)
	}
}

func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMesh(w, r)
	if !ok {
		return
	}
	size := s.cfg.Output.PreviewSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 4096 {
			http.Error(w, "invalid size parameter", http.StatusBadRequest)
			return
		}
		size = parsed
	}
	if size <= 0 {
		size = 256
	}
	w.Header().Set("Content-Type", "image/png")
	if err := mesh.WritePreview(w, m, size); err != nil {
		s.logger.Printf("write preview %s: %v", m.ID, err)
	}
}

func (s *Server) handleDeleteMesh(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid mesh id", http.StatusBadRequest)
		return
	}
	if err := s.store.Delete(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRandomSeed(w http.ResponseWriter, r *http.Request) {
	seed, err := s.generator.RandomizeSeed()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"seed": seed})
}

func (s *Server) handleHeight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	xStr := q.Get("x")
	zStr := q.Get("z")
	if xStr == "" || zStr == "" {
		http.Error(w, "x and z query parameters required", http.StatusBadRequest)
		return
	}
	x, err := strconv.ParseFloat(xStr, 64)
	if err != nil {
		http.Error(w, "invalid x parameter", http.StatusBadRequest)
		return
	}
	z, err := strconv.ParseFloat(zStr, 64)
	if err != nil {
		http.Error(w, "invalid z parameter", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"x":      x,
		"z":      z,
		"height": s.generator.HeightAt(x, z),
	})
}

func (s *Server) loadMesh(w http.ResponseWriter, r *http.Request) (*mesh.Mesh, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid mesh id", http.StatusBadRequest)
		return nil, false
	}
	m, err := s.store.Load(id)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	return m, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
}
