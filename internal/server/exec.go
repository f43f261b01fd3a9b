package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/executor"
	"github.com/joescharf/codespace/internal/language"
	"github.com/joescharf/codespace/internal/logging"
	"github.com/joescharf/codespace/internal/metrics"
	"github.com/joescharf/codespace/internal/models"
)

// snapshot loads every entry of a project for materialization.
func (s *Server) snapshot(ctx context.Context, projectID string) (executor.Snapshot, error) {
	folders, err := s.store.ListFolders(ctx, projectID)
	if err != nil {
		return executor.Snapshot{}, err
	}
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return executor.Snapshot{}, err
	}
	return executor.Snapshot{Folders: folders, Files: files}, nil
}

// rootFiles lists the names of the files at the top of the snapshot.
func rootFiles(snap executor.Snapshot) []string {
	var names []string
	for _, f := range snap.Files {
		if f.Path == "" {
			names = append(names, f.Name)
		}
	}
	return names
}

// finishExec records metrics and writes the execution result.
func (s *Server) finishExec(w http.ResponseWriter, r *http.Request, kind string, start time.Time, res *models.ExecResult, err error) {
	if err != nil {
		metrics.RecordExecution(kind, time.Since(start), false)
		s.log.Warn("execution failed to start",
			zap.String("kind", kind),
			zap.String("request_id", logging.GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.RecordExecution(kind, time.Since(start), !res.HasError())
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) build(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}
	snap, err := s.snapshot(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if strings.TrimSpace(p.BuildCommand) == "" {
		msg := "no build command configured for this project"
		if hint := language.DefaultBuildCommand(language.DetectProject(rootFiles(snap))); hint != "" {
			msg += fmt.Sprintf(" (try %q)", hint)
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	start := time.Now()
	res, err := s.exec.Run(r.Context(), snap, p.BuildCommand)
	s.finishExec(w, r, "build", start, res, err)
}

func (s *Server) terminal(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}
	var body struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}
	snap, err := s.snapshot(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	start := time.Now()
	res, err := s.exec.Run(r.Context(), snap, body.Command)
	s.finishExec(w, r, "terminal", start, res, err)
}

func (s *Server) runFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code      string `json:"code"`
		Language  string `json:"language"`
		ProjectID string `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	lang := body.Language
	if lang == "" {
		lang = language.Default
	}
	if _, ok := language.Interpreter(lang); !ok {
		badRequest(w, "running %s files is not supported", lang)
		return
	}

	var snap executor.Snapshot
	if body.ProjectID != "" {
		if _, err := s.store.GetProject(r.Context(), body.ProjectID); err != nil {
			writeStoreError(w, err)
			return
		}
		var err error
		if snap, err = s.snapshot(r.Context(), body.ProjectID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	start := time.Now()
	res, err := s.exec.RunFile(r.Context(), snap, body.Code, lang)
	s.finishExec(w, r, "run", start, res, err)
}
