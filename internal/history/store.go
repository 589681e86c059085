package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"filecourier/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.DeliveryLog using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		channel     TEXT NOT NULL,
		chat_id     TEXT NOT NULL,
		caption     TEXT,
		files       TEXT NOT NULL,
		file_count  INTEGER NOT NULL,
		status      TEXT NOT NULL,
		error       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_time ON deliveries(created_at);
	CREATE INDEX IF NOT EXISTS idx_deliveries_target ON deliveries(channel, chat_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends one delivery outcome to the ledger.
func (s *SQLiteStore) Record(ctx context.Context, rec domain.DeliveryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	files, err := json.Marshal(rec.Files)
	if err != nil {
		return fmt.Errorf("encode file list: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deliveries (channel, chat_id, caption, files, file_count, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Channel, rec.ChatID, rec.Caption, string(files), len(rec.Files), rec.Status, rec.Error, rec.CreatedAt,
	)
	return err
}

// Recent returns the newest deliveries, most recent first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, chat_id, caption, files, status, error, created_at
		 FROM deliveries ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.DeliveryRecord
	for rows.Next() {
		var rec domain.DeliveryRecord
		var files string
		var caption, errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Channel, &rec.ChatID, &caption, &files,
			&rec.Status, &errText, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Caption = caption.String
		rec.Error = errText.String
		if err := json.Unmarshal([]byte(files), &rec.Files); err != nil {
			s.logger.Warn("corrupt file list in ledger", "id", rec.ID, "err", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Prune deletes ledger entries older than the retention window.
func (s *SQLiteStore) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.DeliveryLog = (*SQLiteStore)(nil)
