// Package server is the reference workspace service: project files over
// SQLite plus run, build and terminal execution.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/executor"
	"github.com/joescharf/codespace/internal/logging"
	"github.com/joescharf/codespace/internal/metrics"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/store"
)

// maxUploadMemory is the multipart memory budget before spilling to disk.
const maxUploadMemory = 32 << 20

// Server provides the REST API handlers.
type Server struct {
	store store.Store
	exec  executor.Runner
	token string
	log   *zap.Logger
}

// NewServer creates a new API server. When token is non-empty every API
// request must carry it as a bearer token.
func NewServer(s store.Store, runner executor.Runner, token string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: s, exec: runner, token: token, log: log}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/projects", s.listProjects)
	mux.HandleFunc("POST /api/projects", s.createProject)
	mux.HandleFunc("GET /api/projects/{pid}", s.getProject)
	mux.HandleFunc("PUT /api/projects/{pid}", s.updateProject)
	mux.HandleFunc("DELETE /api/projects/{pid}", s.deleteProject)

	mux.HandleFunc("GET /api/projects/{pid}/files", s.listEntries)
	mux.HandleFunc("POST /api/projects/{pid}/files", s.createEntry)
	mux.HandleFunc("PUT /api/projects/{pid}/files/{id}", s.updateContent)
	mux.HandleFunc("DELETE /api/projects/{pid}/files/{id}", s.deleteEntry)
	mux.HandleFunc("POST /api/projects/{pid}/upload-files", s.uploadFiles)

	mux.HandleFunc("GET /api/projects/{pid}/build-command", s.getBuildCommand)
	mux.HandleFunc("POST /api/projects/{pid}/build-command", s.setBuildCommand)
	mux.HandleFunc("POST /api/projects/{pid}/build", s.build)
	mux.HandleFunc("POST /api/projects/{pid}/terminal", s.terminal)
	mux.HandleFunc("POST /playground/execute", s.runFile)

	return logging.Middleware(corsMiddleware(s.authMiddleware(metrics.Middleware(mux))))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the bearer token on everything except health and
// metrics.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case strings.Contains(err.Error(), "not found"):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// patchString applies a string value from a JSON patch map to the target if
// the key is present.
func patchString(patch map[string]any, key string, target *string) {
	if v, ok := patch[key]; ok {
		if str, ok := v.(string); ok {
			*target = str
		}
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.lookupProject(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	p.ID = ""
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("project created", zap.String("project", p.ID), zap.String("name", p.Name))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	existing, err := s.lookupProject(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	patchString(patch, "name", &existing.Name)
	patchString(patch, "description", &existing.Description)
	patchString(patch, "build_command", &existing.BuildCommand)
	if strings.TrimSpace(existing.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.store.UpdateProject(r.Context(), existing); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteProject(r.Context(), p.ID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Build command ---

type buildCommandBody struct {
	BuildCommand string `json:"build_command"`
}

func (s *Server) getBuildCommand(w http.ResponseWriter, r *http.Request) {
	p, err := s.lookupProject(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildCommandBody{BuildCommand: p.BuildCommand})
}

func (s *Server) setBuildCommand(w http.ResponseWriter, r *http.Request) {
	var body buildCommandBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	p, err := s.lookupProject(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	p.BuildCommand = strings.TrimSpace(body.BuildCommand)
	if err := s.store.UpdateProject(r.Context(), p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildCommandBody{BuildCommand: p.BuildCommand})
}

// lookupProject resolves a project by ID, falling back to its name.
func (s *Server) lookupProject(ctx context.Context, ref string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, ref)
	if err == nil {
		return p, nil
	}
	if byName, nerr := s.store.GetProjectByName(ctx, ref); nerr == nil {
		return byName, nil
	}
	return nil, err
}

// requireProject writes a 404 and returns false when the project is missing.
func (s *Server) requireProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	p, err := s.lookupProject(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	return p, true
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeError(w, http.StatusBadRequest, fmt.Sprintf(format, args...))
}
