// Package workspace derives a navigable tree from the flat, path-addressed
// file and folder records of a project.
package workspace

import (
	"slices"
	"sync"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/pathcodec"
)

// Index is the flat collection of folder and file records keyed by id, as
// delivered by the backend. An Index is immutable once built.
type Index struct {
	Folders map[string]models.Folder `json:"folders"`
	Files   map[string]models.File   `json:"files"`

	once       sync.Once
	folderKeys map[string]string
	fileKeys   map[string]string
}

// NewIndex builds an index from record slices.
func NewIndex(folders []models.Folder, files []models.File) *Index {
	idx := &Index{
		Folders: make(map[string]models.Folder, len(folders)),
		Files:   make(map[string]models.File, len(files)),
	}
	for _, f := range folders {
		idx.Folders[f.ID] = f
	}
	for _, f := range files {
		idx.Files[f.ID] = f
	}
	return idx
}

// Len returns the total number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Folders) + len(idx.Files)
}

// Folder returns the folder with the given id.
func (idx *Index) Folder(id string) (models.Folder, bool) {
	if idx == nil {
		return models.Folder{}, false
	}
	f, ok := idx.Folders[id]
	return f, ok
}

// File returns the file with the given id.
func (idx *Index) File(id string) (models.File, bool) {
	if idx == nil {
		return models.File{}, false
	}
	f, ok := idx.Files[id]
	return f, ok
}

// Entry returns the file or folder with the given id.
func (idx *Index) Entry(id string) (models.Entry, bool) {
	if f, ok := idx.Folder(id); ok {
		return models.Entry{Kind: models.KindFolder, Folder: &f}, true
	}
	if f, ok := idx.File(id); ok {
		return models.Entry{Kind: models.KindFile, File: &f}, true
	}
	return models.Entry{}, false
}

// FolderAt returns the folder whose ancestor path and name match. When
// several folders share a location the one with the smallest id wins.
func (idx *Index) FolderAt(path, name string) (models.Folder, bool) {
	if idx == nil {
		return models.Folder{}, false
	}
	id, ok := idx.folderIDAt(path, name)
	if !ok {
		return models.Folder{}, false
	}
	return idx.Folders[id], true
}

// folderIDAt returns the map key of the folder at (path, name).
func (idx *Index) folderIDAt(path, name string) (string, bool) {
	idx.buildKeys()
	id, ok := idx.folderKeys[locationKey(path, name)]
	return id, ok
}

// FileAt returns the file whose ancestor path and name match.
func (idx *Index) FileAt(path, name string) (models.File, bool) {
	if idx == nil {
		return models.File{}, false
	}
	idx.buildKeys()
	id, ok := idx.fileKeys[locationKey(path, name)]
	if !ok {
		return models.File{}, false
	}
	return idx.Files[id], true
}

// Lookup resolves a full location such as "src/main.py". Folders take
// precedence over files that share the same location.
func (idx *Index) Lookup(full string) (models.Entry, bool) {
	path, name := pathcodec.Split(full)
	if name == "" {
		return models.Entry{}, false
	}
	if f, ok := idx.FolderAt(path, name); ok {
		return models.Entry{Kind: models.KindFolder, Folder: &f}, true
	}
	if f, ok := idx.FileAt(path, name); ok {
		return models.Entry{Kind: models.KindFile, File: &f}, true
	}
	return models.Entry{}, false
}

// FolderPaths returns the full location of every folder, sorted, with the
// project root ("") first.
func (idx *Index) FolderPaths() []string {
	paths := []string{""}
	if idx == nil {
		return paths
	}
	seen := map[string]bool{"": true}
	for _, f := range idx.Folders {
		p := pathcodec.Join(f.Path, f.Name)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	slices.Sort(paths[1:])
	return paths
}

// buildKeys lazily indexes records by (path, name).
func (idx *Index) buildKeys() {
	idx.once.Do(func() {
		idx.folderKeys = make(map[string]string, len(idx.Folders))
		for id, f := range idx.Folders {
			k := locationKey(f.Path, f.Name)
			if prev, ok := idx.folderKeys[k]; !ok || id < prev {
				idx.folderKeys[k] = id
			}
		}
		idx.fileKeys = make(map[string]string, len(idx.Files))
		for id, f := range idx.Files {
			k := locationKey(f.Path, f.Name)
			if prev, ok := idx.fileKeys[k]; !ok || id < prev {
				idx.fileKeys[k] = id
			}
		}
	})
}

func locationKey(path, name string) string {
	return pathcodec.Clean(path) + "\x00" + name
}
