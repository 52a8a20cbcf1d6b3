package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
)

var ErrMessageNotFound = errors.New("chat message not found")

const defaultHistoryLimit = 50

// ChatMessage is the transcript row. Rows are append-only; deletion is a
// flag flip so the audit trail survives.
type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages,alias:cm"`

	ID        string            `bun:"id,pk"`
	SessionID string            `bun:"session_id,notnull"`
	Role      string            `bun:"role,notnull"`
	Message   string            `bun:"message,notnull"`
	Metadata  map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt time.Time         `bun:"created_at,notnull,default:current_timestamp"`
	IsDeleted bool              `bun:"is_deleted,notnull,default:false"`
}

type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// PostgresMessageLog persists the chat transcript in Postgres through bun.
type PostgresMessageLog struct {
	db *bun.DB
}

var _ contractx.MessageLog = (*PostgresMessageLog)(nil)

func NewPostgresMessageLog(cfg PostgresConfig) (*PostgresMessageLog, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &PostgresMessageLog{db: db}, nil
}

// NewPostgresMessageLogFromDB wraps an existing bun handle; tests use this
// with a driver-less stub.
func NewPostgresMessageLogFromDB(db *bun.DB) *PostgresMessageLog {
	return &PostgresMessageLog{db: db}
}

// EnsureSchema creates the transcript table if it does not exist yet.
func (l *PostgresMessageLog) EnsureSchema(ctx context.Context) error {
	_, err := l.db.NewCreateTable().
		Model((*ChatMessage)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create chat_messages table: %w", err)
	}
	return nil
}

func (l *PostgresMessageLog) Append(ctx context.Context, msg contractx.Message) (contractx.Message, error) {
	if strings.TrimSpace(msg.SessionID) == "" {
		return contractx.Message{}, errors.New("message session id is required")
	}
	if msg.Role != contractx.RoleUser && msg.Role != contractx.RoleAssistant {
		return contractx.Message{}, fmt.Errorf("unsupported message role %q", msg.Role)
	}

	row := ChatMessage{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Role:      string(msg.Role),
		Message:   msg.Text,
		Metadata:  msg.Metadata,
		CreatedAt: msg.CreatedAt,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	if _, err := l.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return contractx.Message{}, fmt.Errorf("insert chat message: %w", err)
	}

	return contractx.Message{
		ID:        row.ID,
		SessionID: row.SessionID,
		Role:      contractx.Role(row.Role),
		Text:      row.Message,
		Metadata:  row.Metadata,
		CreatedAt: row.CreatedAt,
	}, nil
}

// History returns the session transcript oldest-first, skipping soft-deleted
// rows. limit <= 0 falls back to the default window.
func (l *PostgresMessageLog) History(ctx context.Context, sessionID string, limit int) ([]contractx.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var rows []ChatMessage
	err := l.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Where("is_deleted = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	out := make([]contractx.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.Message{
			ID:        row.ID,
			SessionID: row.SessionID,
			Role:      contractx.Role(row.Role),
			Text:      row.Message,
			Metadata:  row.Metadata,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (l *PostgresMessageLog) SoftDelete(ctx context.Context, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return errors.New("message id is required")
	}

	res, err := l.db.NewUpdate().
		Model((*ChatMessage)(nil)).
		Set("is_deleted = ?", true).
		Where("id = ?", messageID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("soft delete chat message: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (l *PostgresMessageLog) Close() error {
	return l.db.Close()
}
