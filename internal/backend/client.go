// Package backend is the HTTP client for the workspace service: project
// files, uploads and code execution.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/workspace"
)

const maxErrorBody = 1 << 20

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Credentials Credentials
	// HTTPClient defaults to a client without a timeout. Requests end only
	// when the server answers or the caller's context is done.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the workspace service. It never retries.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = StaticToken("")
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		creds:      creds,
		httpClient: hc,
		log:        log,
	}
}

// BaseURL returns the service root the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateEntryRequest is the body of a create request.
type CreateEntryRequest struct {
	Type     models.EntryKind `json:"type"`
	Name     string           `json:"name"`
	Path     string           `json:"path"`
	Content  string           `json:"content,omitempty"`
	Language string           `json:"language,omitempty"`
}

// Blob is one file in an upload batch.
type Blob struct {
	Name string
	Data []byte
}

// UploadResult reports which uploaded files the backend stored.
type UploadResult struct {
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected"`
	Errors   []string `json:"errors"`
}

// errorResponse is the JSON error body returned by the service.
type errorResponse struct {
	Error string `json:"error"`
}

// Health checks that the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, nil)
}

// ListProjects returns every project.
func (c *Client) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var out []*models.Project
	if err := c.do(ctx, "list projects", http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	body := map[string]string{"name": name, "description": description}
	var out models.Project
	if err := c.do(ctx, "create project", http.MethodPost, "/api/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, "get project", http.MethodGet, projectPath(projectID, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project and all its entries.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, "delete project", http.MethodDelete, projectPath(projectID, ""), nil, nil)
}

// FetchWorkspace returns the full file and folder index of a project.
func (c *Client) FetchWorkspace(ctx context.Context, projectID string) (*workspace.Index, error) {
	var idx workspace.Index
	if err := c.do(ctx, "fetch workspace", http.MethodGet, projectPath(projectID, "/files"), nil, &idx); err != nil {
		return nil, err
	}
	if idx.Folders == nil {
		idx.Folders = map[string]models.Folder{}
	}
	if idx.Files == nil {
		idx.Files = map[string]models.File{}
	}
	return &idx, nil
}

// CreateEntry creates a file or folder and returns the stored record.
func (c *Client) CreateEntry(ctx context.Context, projectID string, req CreateEntryRequest) (models.Entry, error) {
	// Folder and file records share their identifying fields, so one
	// decode target covers both.
	var rec models.File
	if err := c.do(ctx, "create entry", http.MethodPost, projectPath(projectID, "/files"), req, &rec); err != nil {
		return models.Entry{}, err
	}
	if req.Type == models.KindFolder {
		return models.Entry{Kind: models.KindFolder, Folder: &models.Folder{
			ID:        rec.ID,
			Name:      rec.Name,
			Path:      rec.Path,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}}, nil
	}
	return models.Entry{Kind: models.KindFile, File: &rec}, nil
}

// DeleteEntry removes a file or folder by id.
func (c *Client) DeleteEntry(ctx context.Context, projectID, entryID string) error {
	return c.do(ctx, "delete entry", http.MethodDelete, projectPath(projectID, "/files/"+url.PathEscape(entryID)), nil, nil)
}

// UpdateContent replaces a file's content.
func (c *Client) UpdateContent(ctx context.Context, projectID, fileID, content string) (*models.File, error) {
	var out models.File
	body := map[string]string{"content": content}
	if err := c.do(ctx, "update content", http.MethodPut, projectPath(projectID, "/files/"+url.PathEscape(fileID)), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a batch of files in one multipart request.
func (c *Client) Upload(ctx context.Context, projectID, folderPath string, blobs []Blob) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, b := range blobs {
		fw, err := mw.CreateFormFile("files", b.Name)
		if err != nil {
			return nil, fmt.Errorf("encode upload: %w", err)
		}
		if _, err := fw.Write(b.Data); err != nil {
			return nil, fmt.Errorf("encode upload: %w", err)
		}
	}
	if err := mw.WriteField("folderPath", folderPath); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	var out UploadResult
	err := c.send(ctx, "upload files", http.MethodPost, projectPath(projectID, "/upload-files"), &buf, mw.FormDataContentType(), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RunFile executes a single file's code.
func (c *Client) RunFile(ctx context.Context, projectID, code, lang string) (*models.ExecResult, error) {
	body := map[string]string{"code": code, "language": lang, "project_id": projectID}
	var out models.ExecResult
	if err := c.do(ctx, "run file", http.MethodPost, "/playground/execute", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Build runs the project's build command.
func (c *Client) Build(ctx context.Context, projectID string) (*models.ExecResult, error) {
	var out models.ExecResult
	if err := c.do(ctx, "build project", http.MethodPost, projectPath(projectID, "/build"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Terminal runs a shell command in the project's working copy.
func (c *Client) Terminal(ctx context.Context, projectID, command string) (*models.ExecResult, error) {
	body := map[string]string{"command": command}
	var out models.ExecResult
	if err := c.do(ctx, "terminal command", http.MethodPost, projectPath(projectID, "/terminal"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BuildCommand returns the project's stored build command.
func (c *Client) BuildCommand(ctx context.Context, projectID string) (string, error) {
	var out struct {
		BuildCommand string `json:"build_command"`
	}
	if err := c.do(ctx, "get build command", http.MethodGet, projectPath(projectID, "/build-command"), nil, &out); err != nil {
		return "", err
	}
	return out.BuildCommand, nil
}

// SetBuildCommand stores the project's build command.
func (c *Client) SetBuildCommand(ctx context.Context, projectID, command string) error {
	body := map[string]string{"build_command": command}
	return c.do(ctx, "set build command", http.MethodPost, projectPath(projectID, "/build-command"), body, nil)
}

func projectPath(projectID, suffix string) string {
	return "/api/projects/" + url.PathEscape(projectID) + suffix
}

// do sends an optional JSON body and decodes an optional JSON response.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, op, method, path, body, contentType, out)
}

func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportFailure{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.creds.Token(ctx)
	if err != nil {
		return &TransportFailure{Op: op, Err: fmt.Errorf("credentials: %w", err)}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("op", op), zap.Error(err))
		return &TransportFailure{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejection(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportFailure{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// rejection builds a ServerRejection, preferring the server's own message.
func rejection(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	msg := ""
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		msg = er.Error
	} else if text := strings.TrimSpace(string(data)); text != "" {
		msg = text
	} else {
		msg = fmt.Sprintf("server returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &ServerRejection{Status: resp.StatusCode, Message: msg}
}
