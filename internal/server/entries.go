package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/language"
	"github.com/joescharf/codespace/internal/metrics"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/pathcodec"
)

type workspaceResponse struct {
	Folders map[string]*models.Folder `json:"folders"`
	Files   map[string]*models.File   `json:"files"`
}

type createEntryBody struct {
	Type     models.EntryKind `json:"type"`
	Name     string           `json:"name"`
	Path     string           `json:"path"`
	Content  string           `json:"content"`
	Language string           `json:"language"`
}

type uploadResponse struct {
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected"`
	Errors   []string `json:"errors"`
}

// checkName validates a single entry name.
func checkName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("name is required")
	case strings.Contains(name, "/") || strings.Contains(name, "\\"):
		return fmt.Errorf("name %q must not contain a path separator", name)
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	}
	return nil
}

// checkPath validates an ancestor path and returns it cleaned.
func checkPath(p string) (string, error) {
	for _, seg := range pathcodec.Segments(p) {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("path %q must not contain %q", p, seg)
		}
	}
	return pathcodec.Clean(p), nil
}

// parentExists writes a 400 and returns false when p does not name a folder.
func (s *Server) parentExists(w http.ResponseWriter, r *http.Request, projectID, p string) bool {
	ok, err := s.store.FolderExists(r.Context(), projectID, p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	if !ok {
		badRequest(w, "parent folder does not exist: /%s", p)
		return false
	}
	return true
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}
	folders, err := s.store.ListFolders(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	files, err := s.store.ListFiles(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := workspaceResponse{
		Folders: make(map[string]*models.Folder, len(folders)),
		Files:   make(map[string]*models.File, len(files)),
	}
	for _, f := range folders {
		resp.Folders[f.ID] = f
	}
	for _, f := range files {
		resp.Files[f.ID] = f
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}

	var body createEntryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !body.Type.Valid() {
		badRequest(w, "type must be %q or %q", models.KindFile, models.KindFolder)
		return
	}
	if err := checkName(body.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	parent, err := checkPath(body.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.parentExists(w, r, p.ID, parent) {
		return
	}

	if body.Type == models.KindFolder {
		f := &models.Folder{Name: body.Name, Path: parent}
		err := s.store.CreateFolder(r.Context(), p.ID, f)
		metrics.RecordMutation("create", string(body.Type), err == nil)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		s.log.Info("folder created", zap.String("project", p.ID), zap.String("id", f.ID), zap.String("path", pathcodec.Join(f.Path, f.Name)))
		writeJSON(w, http.StatusCreated, f)
		return
	}

	lang := body.Language
	if lang == "" {
		lang = language.Detect(body.Name)
	} else if !language.IsKnown(lang) {
		badRequest(w, "unknown language %q", lang)
		return
	}
	f := &models.File{Name: body.Name, Path: parent, Content: body.Content, Language: lang}
	err = s.store.CreateFile(r.Context(), p.ID, f)
	metrics.RecordMutation("create", string(body.Type), err == nil)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("file created", zap.String("project", p.ID), zap.String("id", f.ID), zap.String("path", pathcodec.Join(f.Path, f.Name)))
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) updateContent(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}
	var body struct {
		Content *string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Content == nil {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	f, err := s.store.UpdateFileContent(r.Context(), p.ID, r.PathValue("id"), *body.Content)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}
	pid, id := p.ID, r.PathValue("id")
	res, err := s.store.DeleteEntry(r.Context(), pid, id)
	kind := "file"
	if res.Folders > 0 {
		kind = "folder"
	}
	metrics.RecordMutation("delete", kind, err == nil)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("entry deleted",
		zap.String("project", pid),
		zap.String("id", id),
		zap.Int64("folders", res.Folders),
		zap.Int64("files", res.Files),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadFiles(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireProject(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		badRequest(w, "invalid upload: %v", err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parent, err := checkPath(r.FormValue("folderPath"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.parentExists(w, r, p.ID, parent) {
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	resp := uploadResponse{Accepted: []string{}, Rejected: []string{}, Errors: []string{}}
	reject := func(name string, err error) {
		resp.Rejected = append(resp.Rejected, name)
		resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", name, err))
	}

	for _, fh := range headers {
		// Browsers may send a relative path; keep only the base name.
		name := path.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
		if err := checkName(name); err != nil {
			reject(fh.Filename, err)
			continue
		}
		src, err := fh.Open()
		if err != nil {
			reject(name, err)
			continue
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			reject(name, err)
			continue
		}
		if !utf8.Valid(data) {
			reject(name, errors.New("binary files are not supported"))
			continue
		}

		f := &models.File{Name: name, Path: parent, Content: string(data), Language: language.Detect(name)}
		if err := s.store.CreateFile(r.Context(), p.ID, f); err != nil {
			reject(name, err)
			continue
		}
		resp.Accepted = append(resp.Accepted, name)
	}

	metrics.RecordUpload(len(resp.Accepted), len(resp.Rejected))
	s.log.Info("upload processed",
		zap.String("project", p.ID),
		zap.String("path", parent),
		zap.Int("accepted", len(resp.Accepted)),
		zap.Int("rejected", len(resp.Rejected)),
	)
	writeJSON(w, http.StatusOK, resp)
}
