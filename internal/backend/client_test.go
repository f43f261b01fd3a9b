package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codespace/internal/models"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(Config{BaseURL: ts.URL + "/", Credentials: StaticToken("secret")})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchWorkspace(t *testing.T) {
	var gotAuth, gotPath string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, map[string]any{
			"folders": map[string]any{"f1": map[string]string{"id": "f1", "name": "src", "path": ""}},
			"files":   map[string]any{"x1": map[string]string{"id": "x1", "name": "main.py", "path": "src"}},
		})
	})

	idx, err := c.FetchWorkspace(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/api/projects/p1/files", gotPath)
	assert.Equal(t, 2, idx.Len())
}

func TestFetchWorkspace_EmptyBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	idx, err := c.FetchWorkspace(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotNil(t, idx.Folders)
	assert.NotNil(t, idx.Files)
	assert.Equal(t, 0, idx.Len())
}

func TestCreateEntry(t *testing.T) {
	var got CreateEntryRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, map[string]string{"id": "f9", "name": got.Name, "path": got.Path})
	})

	e, err := c.CreateEntry(context.Background(), "p1", CreateEntryRequest{Type: models.KindFolder, Name: "lib", Path: "src"})
	require.NoError(t, err)
	assert.Equal(t, models.KindFolder, got.Type)
	assert.Equal(t, models.KindFolder, e.Kind)
	require.NotNil(t, e.Folder)
	assert.Equal(t, "f9", e.ID())
	assert.Equal(t, "src", e.Path())
}

func TestServerRejection_Message(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a file named main.py already exists"})
	})

	_, err := c.CreateEntry(context.Background(), "p1", CreateEntryRequest{Type: models.KindFile, Name: "main.py"})
	require.Error(t, err)
	sr, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, sr.Status)
	assert.Equal(t, "a file named main.py already exists", sr.Message)
	assert.False(t, IsTransport(err))
}

func TestServerRejection_PlainBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.DeleteEntry(context.Background(), "p1", "x1")
	sr, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "boom", sr.Message)
}

func TestServerRejection_EmptyBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := c.DeleteEntry(context.Background(), "p1", "x1")
	sr, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "server returned 403 Forbidden", sr.Message)
}

func TestTransportFailure_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(Config{BaseURL: url})
	_, err := c.Terminal(context.Background(), "p1", "ls")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	_, ok := AsRejection(err)
	assert.False(t, ok)
}

func TestTransportFailure_BadJSON(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	})

	_, err := c.Build(context.Background(), "p1")
	assert.True(t, IsTransport(err))
}

func TestExecResult_ErrorFieldIsNotGoError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "print(1/0)", body["code"])
		assert.Equal(t, "python", body["language"])
		writeJSON(w, http.StatusOK, map[string]string{"output": "", "error": "ZeroDivisionError"})
	})

	res, err := c.RunFile(context.Background(), "p1", "print(1/0)", "python")
	require.NoError(t, err)
	assert.True(t, res.HasError())
	assert.Equal(t, "ZeroDivisionError", *res.Error)
}

func TestUpload_Multipart(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "src", r.FormValue("folderPath"))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.py", files[0].Filename)
		assert.Equal(t, "b.py", files[1].Filename)
		writeJSON(w, http.StatusOK, UploadResult{Accepted: []string{"a.py", "b.py"}})
	})

	res, err := c.Upload(context.Background(), "p1", "src", []Blob{
		{Name: "a.py", Data: []byte("print('a')")},
		{Name: "b.py", Data: []byte("print('b')")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, res.Accepted)
	assert.Empty(t, res.Rejected)
}

func TestBuildCommand(t *testing.T) {
	stored := ""
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			stored = body["build_command"]
			writeJSON(w, http.StatusOK, body)
		default:
			writeJSON(w, http.StatusOK, map[string]string{"build_command": stored})
		}
	})

	require.NoError(t, c.SetBuildCommand(context.Background(), "p1", "make"))
	got, err := c.BuildCommand(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "make", got)
}

func TestCreateProject_Validation(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:0"})
	_, err := c.CreateProject(context.Background(), "  ", "")
	assert.True(t, IsValidation(err))
}

func TestEnvToken(t *testing.T) {
	t.Setenv("CODESPACE_TEST_TOKEN", "from-env")
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, Credentials: EnvToken("CODESPACE_TEST_TOKEN")})
	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, "Bearer from-env", gotAuth)
}

func TestNoToken_NoHeader(t *testing.T) {
	var present bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	require.NoError(t, c.Health(context.Background()))
	assert.False(t, present)
}
