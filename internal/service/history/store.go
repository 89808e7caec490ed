package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record одна запись журнала диктовки.
type Record struct {
	ID        int64
	SessionID string
	Mode      string
	Text      string
	CreatedAt time.Time
}

// Store журнал зафиксированных транскриптов в локальном sqlite-файле.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	mode        TEXT NOT NULL,
	text        TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts(created_at);
`

// Open открывает (и при необходимости создаёт) базу журнала.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("history: не удалось создать каталог базы: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: открытие базы: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: миграция схемы: %w", err)
	}
	return &Store{db: db}, nil
}

// Append добавляет зафиксированный транскрипт в журнал.
func (s *Store) Append(ctx context.Context, sessionID, mode, text string) error {
	if text == "" {
		return nil
	}
	// created_at пишем явно: значение time.Time драйвер сохраняет в формате,
	// который сам же умеет сканировать обратно
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts(session_id, mode, text, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, mode, text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent возвращает последние n записей, новые первыми.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, mode, text, created_at FROM transcripts ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: select: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Mode, &r.Text, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close закрывает базу.
func (s *Store) Close() error { return s.db.Close() }
