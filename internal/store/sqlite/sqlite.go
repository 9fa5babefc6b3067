package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot-ai/perch/internal/model"
	"github.com/alphabot-ai/perch/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(path))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// withPragmas makes every pooled connection enforce foreign keys and wait on
// locks instead of failing.
func withPragmas(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrations run once each, in order, tracked by the schema_version table.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	page TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS authors (
	id TEXT PRIMARY KEY,
	email_hash TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	page_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	reply_to_id TEXT,
	text TEXT NOT NULL,
	approved INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(page_id) REFERENCES pages(id) ON DELETE CASCADE,
	FOREIGN KEY(author_id) REFERENCES authors(id) ON DELETE CASCADE,
	FOREIGN KEY(reply_to_id) REFERENCES comments(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_comments_page ON comments(page_id, approved, created_at DESC);

CREATE TABLE IF NOT EXISTS avatars (
	author_id TEXT PRIMARY KEY,
	mime TEXT,
	data BLOB,
	pixels INTEGER NOT NULL,
	refresh_at INTEGER NOT NULL,
	FOREIGN KEY(author_id) REFERENCES authors(id) ON DELETE CASCADE
);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) FindPage(ctx context.Context, path string) (model.Page, error) {
	var p model.Page
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT id, page, created_at FROM pages WHERE page = ?`, path).
		Scan(&p.ID, &p.Path, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, store.ErrNotFound
	}
	if err != nil {
		return model.Page{}, err
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

// EnsurePage returns the page for path, creating it on first use.
func (s *Store) EnsurePage(ctx context.Context, path string) (model.Page, error) {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO pages (id, page, created_at) VALUES (?, ?, ?)
ON CONFLICT(page) DO NOTHING
`, uuid.NewString(), path, time.Now().Unix()); err != nil {
		return model.Page{}, err
	}
	return s.FindPage(ctx, path)
}

func (s *Store) GetAuthor(ctx context.Context, id string) (model.Author, error) {
	return scanAuthor(s.db.QueryRowContext(ctx, `SELECT id, email_hash, name, created_at FROM authors WHERE id = ?`, id))
}

// EnsureAuthor returns the author for emailHash, creating it with name on
// first use. The stored name is not updated afterwards.
func (s *Store) EnsureAuthor(ctx context.Context, emailHash, name string) (model.Author, error) {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO authors (id, email_hash, name, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(email_hash) DO NOTHING
`, uuid.NewString(), emailHash, name, time.Now().Unix()); err != nil {
		return model.Author{}, err
	}
	return scanAuthor(s.db.QueryRowContext(ctx, `SELECT id, email_hash, name, created_at FROM authors WHERE email_hash = ?`, emailHash))
}

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO comments (id, page_id, author_id, reply_to_id, text, approved, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, c.ID, c.PageID, c.AuthorID, nullableString(c.ReplyToID), c.Text, boolToInt(c.Approved), c.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateComment
		}
		return err
	}
	return nil
}

const commentColumns = `c.id, c.page_id, c.author_id, c.reply_to_id, c.text, c.approved, c.created_at, a.name, a.email_hash`

func (s *Store) GetComment(ctx context.Context, id string) (model.Comment, error) {
	return scanComment(s.db.QueryRowContext(ctx, `
SELECT `+commentColumns+`
FROM comments c
INNER JOIN authors a ON a.id = c.author_id
WHERE c.id = ?
`, id))
}

func (s *Store) ApproveComment(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET approved = 1 WHERE id = ? AND approved = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := s.GetComment(ctx, id); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListApprovedComments returns the approved comments of a page, newest first.
func (s *Store) ListApprovedComments(ctx context.Context, pageID string) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+commentColumns+`
FROM comments c
INNER JOIN authors a ON a.id = c.author_id
WHERE c.page_id = ? AND c.approved = 1
ORDER BY c.created_at DESC, c.rowid DESC
`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) GetAvatar(ctx context.Context, authorID string) (model.Avatar, error) {
	var a model.Avatar
	var mime sql.NullString
	var refresh int64
	err := s.db.QueryRowContext(ctx, `
SELECT author_id, mime, data, pixels, refresh_at FROM avatars WHERE author_id = ?
`, authorID).Scan(&a.AuthorID, &mime, &a.Data, &a.Pixels, &refresh)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Avatar{}, store.ErrNotFound
	}
	if err != nil {
		return model.Avatar{}, err
	}
	a.MIME = mime.String
	a.RefreshAt = time.Unix(refresh, 0)
	return a, nil
}

func (s *Store) PutAvatar(ctx context.Context, a model.Avatar) error {
	var data any
	if !a.Empty() {
		data = a.Data
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO avatars (author_id, mime, data, pixels, refresh_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(author_id) DO UPDATE SET
	mime = excluded.mime,
	data = excluded.data,
	pixels = excluded.pixels,
	refresh_at = excluded.refresh_at
`, a.AuthorID, nullIfEmpty(a.MIME), data, a.Pixels, a.RefreshAt.Unix())
	return err
}

type scanner interface{ Scan(dest ...any) error }

func scanAuthor(row scanner) (model.Author, error) {
	var a model.Author
	var created int64
	if err := row.Scan(&a.ID, &a.EmailHash, &a.Name, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Author{}, store.ErrNotFound
		}
		return model.Author{}, err
	}
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}

func scanComment(row scanner) (model.Comment, error) {
	var c model.Comment
	var replyTo sql.NullString
	var approved int
	var created int64
	if err := row.Scan(&c.ID, &c.PageID, &c.AuthorID, &replyTo, &c.Text, &approved, &created, &c.AuthorName, &c.AuthorEmailHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Comment{}, store.ErrNotFound
		}
		return model.Comment{}, err
	}
	if replyTo.Valid {
		id := replyTo.String
		c.ReplyToID = &id
	}
	c.Approved = approved == 1
	c.CreatedAt = time.Unix(created, 0)
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
