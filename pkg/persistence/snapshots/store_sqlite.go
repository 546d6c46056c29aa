package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite snapshot store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DSNForFile returns a WAL-mode DSN for a database file.
func DSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite snapshot store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

// OpenFile opens (and creates) the archive at path.
func OpenFile(path string) (*SQLiteStore, error) {
	dsn, err := DSNForFile(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(dsn)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite snapshot store: db is nil")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL DEFAULT '',
			conversation_id TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL DEFAULT '',
			client_details_json TEXT NOT NULL DEFAULT '{}',
			reply_text TEXT NOT NULL DEFAULT '',
			close_suggested INTEGER NOT NULL DEFAULT 0,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			content_hash TEXT PRIMARY KEY,
			hash_algorithm TEXT NOT NULL DEFAULT 'sha256-canonical-json-v1',
			author_type TEXT NOT NULL,
			author_name TEXT NOT NULL DEFAULT '',
			msg_timestamp TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			first_seen_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_messages (
			snapshot_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			PRIMARY KEY (snapshot_id, ordinal),
			FOREIGN KEY (snapshot_id) REFERENCES snapshots(snapshot_id) ON DELETE CASCADE,
			FOREIGN KEY (content_hash) REFERENCES messages(content_hash)
		);`,
		`CREATE INDEX IF NOT EXISTS snapshots_by_conversation ON snapshots(conversation_id, created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS snapshots_by_client ON snapshots(client_name, created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS snapshots_by_run ON snapshots(run_id, created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS snapshot_messages_by_hash ON snapshot_messages(content_hash);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite snapshot store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite snapshot store: db is nil")
	}
	if ctx == nil {
		return errors.New("sqlite snapshot store: ctx is nil")
	}
	if strings.TrimSpace(snap.ID) == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAtMs <= 0 {
		snap.CreatedAtMs = time.Now().UnixMilli()
	}
	detailsJSON, err := json.Marshal(snap.ClientDetails)
	if err != nil {
		return errors.Wrap(err, "sqlite snapshot store: marshal client details")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite snapshot store: begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots(
			snapshot_id, run_id, conversation_id, client_name, client_details_json,
			reply_text, close_suggested, provider, model, created_at_ms
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.RunID, snap.ConversationID, strings.TrimSpace(snap.ClientName), string(detailsJSON),
		snap.Reply, boolToInt(snap.CloseSuggested), snap.Provider, snap.Model, snap.CreatedAtMs); err != nil {
		return errors.Wrap(err, "sqlite snapshot store: insert snapshot")
	}

	for i, m := range snap.Messages {
		hash, err := ComputeMessageHash(m)
		if err != nil {
			return errors.Wrap(err, "sqlite snapshot store: compute message hash")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages(
				content_hash, hash_algorithm, author_type, author_name, msg_timestamp, text, first_seen_at_ms
			)
			VALUES(?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(content_hash) DO UPDATE SET
				first_seen_at_ms = MIN(messages.first_seen_at_ms, excluded.first_seen_at_ms)
		`, hash, MessageHashAlgorithmV1, string(m.AuthorType), m.AuthorName, m.Timestamp, m.Text, snap.CreatedAtMs); err != nil {
			return errors.Wrap(err, "sqlite snapshot store: upsert message")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_messages(snapshot_id, ordinal, content_hash) VALUES(?, ?, ?)
		`, snap.ID, i, hash); err != nil {
			return errors.Wrap(err, "sqlite snapshot store: insert snapshot_messages")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite snapshot store: commit tx")
	}
	committed = true
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite snapshot store: db is nil")
	}
	if ctx == nil {
		return nil, errors.New("sqlite snapshot store: ctx is nil")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}

	clauses := []string{}
	args := []any{}
	if v := strings.TrimSpace(q.ConversationID); v != "" {
		clauses = append(clauses, "conversation_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.ClientName); v != "" {
		clauses = append(clauses, "client_name = ? COLLATE NOCASE")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.RunID); v != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, v)
	}
	if q.SinceMs > 0 {
		clauses = append(clauses, "created_at_ms >= ?")
		args = append(args, q.SinceMs)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT
			snapshot_id, run_id, conversation_id, client_name, client_details_json,
			reply_text, close_suggested, provider, model, created_at_ms
		FROM snapshots
		%s
		ORDER BY created_at_ms DESC, snapshot_id
		LIMIT ?
	`, where)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite snapshot store: query")
	}
	items := []Snapshot{}
	for rows.Next() {
		var (
			item        Snapshot
			detailsJSON string
			closeFlag   int
		)
		if err := rows.Scan(
			&item.ID,
			&item.RunID,
			&item.ConversationID,
			&item.ClientName,
			&detailsJSON,
			&item.Reply,
			&closeFlag,
			&item.Provider,
			&item.Model,
			&item.CreatedAtMs,
		); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if strings.TrimSpace(detailsJSON) != "" {
			if err := json.Unmarshal([]byte(detailsJSON), &item.ClientDetails); err != nil {
				_ = rows.Close()
				return nil, errors.Wrap(err, "sqlite snapshot store: parse client details json")
			}
		}
		item.CloseSuggested = closeFlag != 0
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range items {
		msgs, err := s.loadMessages(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Messages = msgs
	}
	return items, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, snapshotID string) ([]conversation.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.author_type, m.author_name, m.msg_timestamp, m.text
		FROM snapshot_messages sm
		JOIN messages m ON m.content_hash = sm.content_hash
		WHERE sm.snapshot_id = ?
		ORDER BY sm.ordinal ASC
	`, snapshotID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite snapshot store: query snapshot messages")
	}
	defer func() { _ = rows.Close() }()

	out := []conversation.Message{}
	for rows.Next() {
		var (
			m          conversation.Message
			authorType string
		)
		if err := rows.Scan(&authorType, &m.AuthorName, &m.Timestamp, &m.Text); err != nil {
			return nil, errors.Wrap(err, "sqlite snapshot store: scan snapshot message")
		}
		m.AuthorType = conversation.AuthorType(authorType)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite snapshot store: iterate snapshot messages")
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
