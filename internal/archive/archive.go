// Package archive keeps a local SQLite record of finished conversation
// turns, so transcripts survive client restarts and runtime resets.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentchat/agentchat/internal/domain"
)

// SessionRecord is the archived summary row for one session.
type SessionRecord struct {
	ID            string
	AgentName     string
	Title         string
	ToolsApproved bool
	InputTokens   int
	OutputTokens  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Archive is a SQLite-backed transcript store.
type Archive struct {
	db *sql.DB
}

// New opens the archive at the given DSN and runs migrations.
func New(dsn string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			agent_name TEXT NOT NULL,
			title TEXT,
			tools_approved INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			content_parts TEXT,
			agent_name TEXT,
			tool_name TEXT,
			tokens TEXT,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := a.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// UpsertSession creates or refreshes the summary row for a session.
func (a *Archive) UpsertSession(ctx context.Context, rec *SessionRecord) error {
	now := time.Now()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, agent_name, title, tools_approved, input_tokens, output_tokens, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			agent_name = excluded.agent_name,
			title = excluded.title,
			tools_approved = excluded.tools_approved,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			updated_at = excluded.updated_at`,
		rec.ID, rec.AgentName, rec.Title, rec.ToolsApproved, rec.InputTokens, rec.OutputTokens, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// GetSession retrieves one archived session, or nil when absent.
func (a *Archive) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	var title sql.NullString
	err := a.db.QueryRowContext(ctx,
		`SELECT session_id, agent_name, title, tools_approved, input_tokens, output_tokens, created_at, updated_at
		 FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&rec.ID, &rec.AgentName, &title, &rec.ToolsApproved, &rec.InputTokens, &rec.OutputTokens, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if title.Valid {
		rec.Title = title.String
	}
	return &rec, nil
}

// ListSessions lists archived sessions, most recently updated first.
func (a *Archive) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT session_id, agent_name, title, tools_approved, input_tokens, output_tokens, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var title sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AgentName, &title, &rec.ToolsApproved, &rec.InputTokens, &rec.OutputTokens, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if title.Valid {
			rec.Title = title.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveMessages replaces the archived transcript of a session with the
// given messages. The full replace keeps the archive consistent with the
// in-memory transcript without tracking per-message diffs.
func (a *Archive) SaveMessages(ctx context.Context, sessionID string, msgs []domain.Message) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for i, msg := range msgs {
		var parts, tokens sql.NullString
		if len(msg.ContentParts) > 0 {
			data, err := json.Marshal(msg.ContentParts)
			if err != nil {
				return fmt.Errorf("failed to marshal content parts: %w", err)
			}
			parts = sql.NullString{String: string(data), Valid: true}
		}
		if msg.Tokens != nil {
			data, err := json.Marshal(msg.Tokens)
			if err != nil {
				return fmt.Errorf("failed to marshal tokens: %w", err)
			}
			tokens = sql.NullString{String: string(data), Valid: true}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (message_id, session_id, seq, role, content, content_parts, agent_name, tool_name, tokens, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, sessionID, i, string(msg.Role), msg.Content, parts,
			nullString(msg.AgentName), nullString(msg.ToolName), tokens, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetMessages retrieves the archived transcript of a session in order.
func (a *Archive) GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT message_id, role, content, content_parts, agent_name, tool_name, tokens, created_at
		 FROM messages WHERE session_id = ? ORDER BY seq ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		var parts, agentName, toolName, tokens sql.NullString
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &parts, &agentName, &toolName, &tokens, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		if parts.Valid {
			if err := json.Unmarshal([]byte(parts.String), &msg.ContentParts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal content parts: %w", err)
			}
		}
		if agentName.Valid {
			msg.AgentName = agentName.String
		}
		if toolName.Valid {
			msg.ToolName = toolName.String
		}
		if tokens.Valid {
			var delta domain.TokenDelta
			if err := json.Unmarshal([]byte(tokens.String), &delta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tokens: %w", err)
			}
			msg.Tokens = &delta
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteSession removes an archived session and its messages.
func (a *Archive) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
