package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteTemplatesSchemaV1 = `
CREATE TABLE IF NOT EXISTS templates (
    id TEXT PRIMARY KEY,
    payload_json TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteTemplateStore persists templates in a SQLite database, one JSON payload per row.
type SQLiteTemplateStore struct {
	mu     sync.RWMutex
	dsn    string
	db     *sql.DB
	closed bool
}

var _ Store = (*SQLiteTemplateStore)(nil)

func NewSQLiteTemplateStore(dsn string) (*SQLiteTemplateStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite template store: empty dsn")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLiteTemplateStore{dsn: dsn, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.seedBuiltins(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteTemplateStore) List(ctx context.Context) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, payload_json FROM templates`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	out := []*Template{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		t, err := decodeTemplatePayload(id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return fileName(out[i].ID) < fileName(out[j].ID) })
	return out, nil
}

func (s *SQLiteTemplateStore) Get(ctx context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload_json FROM templates WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeTemplatePayload(id, payload)
}

func (s *SQLiteTemplateStore) Save(ctx context.Context, t *Template) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	stored, err := prepareForSave(t)
	if err != nil {
		return nil, err
	}
	if err := s.upsertLocked(ctx, stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (s *SQLiteTemplateStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	if IsBuiltinID(id) {
		return false, ErrBuiltinTemplate
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteTemplateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteTemplateStore) migrate() error {
	if s.db == nil {
		return fmt.Errorf("sqlite template store: db is nil")
	}
	_, err := s.db.Exec(sqliteTemplatesSchemaV1)
	return err
}

func (s *SQLiteTemplateStore) seedBuiltins(ctx context.Context) error {
	for _, t := range Builtins() {
		payload, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO templates (id, payload_json, updated_at_ms) VALUES (?, ?, ?)`,
			t.ID,
			string(payload),
			time.Now().UnixMilli(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteTemplateStore) upsertLocked(ctx context.Context, t *Template) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO templates (id, payload_json, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET payload_json = excluded.payload_json, updated_at_ms = excluded.updated_at_ms`,
		t.ID,
		string(payload),
		time.Now().UnixMilli(),
	)
	return err
}

func (s *SQLiteTemplateStore) ensureOpen() error {
	if s.closed {
		return ErrStoreClosed
	}
	if s.db == nil {
		return fmt.Errorf("sqlite template store db is nil")
	}
	return nil
}

func decodeTemplatePayload(id string, payload string) (*Template, error) {
	t := &Template{}
	if err := json.Unmarshal([]byte(payload), t); err != nil {
		return nil, errors.Wrapf(err, "sqlite template store: could not decode %q", id)
	}
	if t.ID == "" {
		t.ID = id
	}
	if t.ID != id {
		return nil, fmt.Errorf("sqlite template store: id mismatch payload=%q row=%q", t.ID, id)
	}
	return t, nil
}

// SQLiteTemplateDSNForFile builds the DSN used for a database file on disk.
func SQLiteTemplateDSNForFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite template store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}
