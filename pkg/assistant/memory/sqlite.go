package memory

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/anay-go/anay/pkg/core/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore persists messages in a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite creates or opens the history database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrator() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	p, err := s.migrator()
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

// Version reports the applied schema version.
func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	p, err := s.migrator()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) Append(ctx context.Context, sessionKey string, msg types.Message) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_key, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionKey, string(msg.Role), msg.Content, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Load returns up to limit of the newest messages, oldest first.
func (s *SQLiteStore) Load(ctx context.Context, sessionKey string, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = DefaultPairs * 2
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM messages
			WHERE session_key = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`,
		sessionKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var (
			role    string
			content string
			created int64
		)
		if err := rows.Scan(&role, &content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, types.Message{
			Role:      types.Role(role),
			Content:   content,
			Timestamp: time.UnixMilli(created).UTC(),
		})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, sessionKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_key = ?`, sessionKey); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
