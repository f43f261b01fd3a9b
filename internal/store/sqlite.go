package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/pathcodec"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers; SQLite allows only one at a time.
	db.SetMaxOpenConns(1)

	pragmas := []struct {
		stmt string
		desc string
	}{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p.desc, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// uniqueViolation maps SQLite unique constraint failures to ErrAlreadyExists.
func uniqueViolation(err error, what string) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s %w", what, ErrAlreadyExists)
	}
	return nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

const projectColumns = `id, name, description, build_command, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.BuildCommand, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.BuildCommand, p.CreatedAt, p.UpdatedAt,
	)
	if dup := uniqueViolation(err, "project "+p.Name); dup != nil {
		return dup
	}
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name=?, description=?, build_command=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, p.BuildCommand, p.UpdatedAt, p.ID,
	)
	if dup := uniqueViolation(err, "project "+p.Name); dup != nil {
		return dup
	}
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project not found: %s", p.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// --- Folders ---

func (s *SQLiteStore) CreateFolder(ctx context.Context, projectID string, f *models.Folder) error {
	if f.ID == "" {
		f.ID = newULID()
	}
	f.Path = pathcodec.Clean(f.Path)
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (id, project_id, name, path, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, projectID, f.Name, f.Path, f.CreatedAt, f.UpdatedAt,
	)
	if dup := uniqueViolation(err, fmt.Sprintf("a folder named %q in %q", f.Name, "/"+f.Path)); dup != nil {
		return dup
	}
	if err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListFolders(ctx context.Context, projectID string) ([]*models.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, created_at, updated_at FROM folders WHERE project_id = ? ORDER BY path, name`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var folders []*models.Folder
	for rows.Next() {
		f := &models.Folder{}
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// FolderExists reports whether a folder exists at fullPath. The root ("")
// always exists.
func (s *SQLiteStore) FolderExists(ctx context.Context, projectID, fullPath string) (bool, error) {
	path, name := pathcodec.Split(fullPath)
	if name == "" {
		return true, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE project_id = ? AND path = ? AND name = ?`,
		projectID, path, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check folder: %w", err)
	}
	return count > 0, nil
}

// --- Files ---

const fileColumns = `id, name, path, content, language, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{}
	err := row.Scan(&f.ID, &f.Name, &f.Path, &f.Content, &f.Language, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (s *SQLiteStore) CreateFile(ctx context.Context, projectID string, f *models.File) error {
	if f.ID == "" {
		f.ID = newULID()
	}
	f.Path = pathcodec.Clean(f.Path)
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, project_id, name, path, content, language, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, projectID, f.Name, f.Path, f.Content, f.Language, f.CreatedAt, f.UpdatedAt,
	)
	if dup := uniqueViolation(err, fmt.Sprintf("a file named %q in %q", f.Name, "/"+f.Path)); dup != nil {
		return dup
	}
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFile(ctx context.Context, projectID, id string) (*models.File, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE project_id = ? AND id = ?`, projectID, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, projectID string) ([]*models.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE project_id = ? ORDER BY path, name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) UpdateFileContent(ctx context.Context, projectID, id, content string) (*models.File, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE files SET content = ?, updated_at = ? WHERE project_id = ? AND id = ?`,
		content, now, projectID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update file: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	return s.GetFile(ctx, projectID, id)
}

// --- Entries ---

// DeleteEntry removes the file or folder with the given id. Deleting a folder
// also removes every folder and file whose path lies beneath it.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, projectID, id string) (DeleteResult, error) {
	var res DeleteResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM files WHERE project_id = ? AND id = ?`, projectID, id)
	if err != nil {
		return res, fmt.Errorf("delete file: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		res.Files = n
		return res, tx.Commit()
	}

	var name, path string
	err = tx.QueryRowContext(ctx,
		`SELECT name, path FROM folders WHERE project_id = ? AND id = ?`, projectID, id,
	).Scan(&name, &path)
	if err == sql.ErrNoRows {
		return res, fmt.Errorf("entry not found: %s", id)
	}
	if err != nil {
		return res, fmt.Errorf("get folder: %w", err)
	}

	full := pathcodec.Join(path, name)
	prefix := full + pathcodec.Separator
	prefixLen := utf8.RuneCountInString(prefix)

	result, err = tx.ExecContext(ctx,
		`DELETE FROM files WHERE project_id = ? AND (path = ? OR substr(path, 1, ?) = ?)`,
		projectID, full, prefixLen, prefix)
	if err != nil {
		return res, fmt.Errorf("delete folder files: %w", err)
	}
	res.Files, _ = result.RowsAffected()

	result, err = tx.ExecContext(ctx,
		`DELETE FROM folders WHERE project_id = ? AND (id = ? OR path = ? OR substr(path, 1, ?) = ?)`,
		projectID, id, full, prefixLen, prefix)
	if err != nil {
		return res, fmt.Errorf("delete folders: %w", err)
	}
	res.Folders, _ = result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit delete: %w", err)
	}
	return res, nil
}
