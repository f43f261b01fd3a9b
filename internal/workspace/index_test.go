package workspace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codespace/internal/models"
)

func TestIndex_DecodeWireFormat(t *testing.T) {
	body := `{
		"folders": {"f1": {"id": "f1", "name": "src", "path": ""}},
		"files": {"x1": {"id": "x1", "name": "main.py", "path": "src", "content": "print(1)", "language": "python"}}
	}`
	var idx Index
	require.NoError(t, json.Unmarshal([]byte(body), &idx))

	assert.Equal(t, 2, idx.Len())
	e, ok := idx.Lookup("src/main.py")
	require.True(t, ok)
	assert.Equal(t, models.KindFile, e.Kind)
	assert.Equal(t, "print(1)", e.File.Content)
}

func TestIndex_Lookup(t *testing.T) {
	idx := NewIndex(
		[]models.Folder{
			{ID: "f1", Name: "src", Path: ""},
			{ID: "f2", Name: "app", Path: "src"},
		},
		[]models.File{{ID: "x1", Name: "main.py", Path: "src/app"}},
	)

	tests := []struct {
		name   string
		full   string
		wantID string
		wantOK bool
	}{
		{"root folder", "src", "f1", true},
		{"nested folder", "src/app", "f2", true},
		{"file", "src/app/main.py", "x1", true},
		{"leading slash", "/src/app/main.py", "x1", true},
		{"missing", "src/nope", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := idx.Lookup(tt.full)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, e.ID())
		})
	}
}

func TestIndex_FolderPaths(t *testing.T) {
	idx := NewIndex(
		[]models.Folder{
			{ID: "f2", Name: "tests", Path: ""},
			{ID: "f1", Name: "src", Path: ""},
			{ID: "f3", Name: "app", Path: "src"},
		},
		nil,
	)
	assert.Equal(t, []string{"", "src", "src/app", "tests"}, idx.FolderPaths())
}

func TestIndex_NilSafe(t *testing.T) {
	var idx *Index
	assert.Equal(t, 0, idx.Len())
	_, ok := idx.Folder("x")
	assert.False(t, ok)
	_, ok = idx.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, []string{""}, idx.FolderPaths())
}
