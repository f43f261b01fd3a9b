package models

import "time"

// EntryKind distinguishes files from folders.
type EntryKind string

const (
	KindFile   EntryKind = "file"
	KindFolder EntryKind = "folder"
)

// Valid reports whether k is a known kind.
func (k EntryKind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// Folder is a folder record as stored by the backend. Path holds the ancestor
// path only; it never includes the folder's own name.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File is a file record. Its full location is Path + "/" + Name.
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is either a file or a folder.
type Entry struct {
	Kind   EntryKind
	Folder *Folder
	File   *File
}

// ID returns the entry's record id.
func (e Entry) ID() string {
	if e.Folder != nil {
		return e.Folder.ID
	}
	if e.File != nil {
		return e.File.ID
	}
	return ""
}

// Name returns the entry's own name.
func (e Entry) Name() string {
	if e.Folder != nil {
		return e.Folder.Name
	}
	if e.File != nil {
		return e.File.Name
	}
	return ""
}

// Path returns the entry's ancestor path.
func (e Entry) Path() string {
	if e.Folder != nil {
		return e.Folder.Path
	}
	if e.File != nil {
		return e.File.Path
	}
	return ""
}

// ExecResult is the response of run, build and terminal requests. Error is
// set only when the backend reports one.
type ExecResult struct {
	Output string  `json:"output"`
	Error  *string `json:"error,omitempty"`
}

// HasError reports whether the backend included an error message.
func (r ExecResult) HasError() bool {
	return r.Error != nil && *r.Error != ""
}
