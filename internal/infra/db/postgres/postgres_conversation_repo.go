package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

var (
	_ repository.ConversationRepository = (*conversationRepo)(nil)
	_ repository.MessageRepository      = (*messageRepo)(nil)
)

type conversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *conversationRepo {
	return &conversationRepo{pool: pool}
}

const convColumns = `
id, user_id, title, upstream_conversation_id, deleted, deleted_at, created_at, updated_at`

func (r *conversationRepo) Save(ctx context.Context, tx repository.Tx, c *model.Conversation) error {
	const q = `
INSERT INTO conversations (
  id, user_id, title, upstream_conversation_id, deleted, deleted_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  title=$3, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.UserID, c.Title, c.UpstreamConversationID, c.Deleted, c.DeletedAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT `+convColumns+` FROM conversations WHERE id=$1;`, id)
	var c model.Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.UpstreamConversationID, &c.Deleted, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &c, nil
}

func (r *conversationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Conversation, error) {
	const q = `
SELECT ` + convColumns + `
  FROM conversations
 WHERE user_id=$1 AND NOT deleted
 ORDER BY updated_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	var out []*model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.UpstreamConversationID, &c.Deleted, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *conversationRepo) SetUpstreamID(ctx context.Context, tx repository.Tx, id, upstreamID string) error {
	const q = `
UPDATE conversations SET upstream_conversation_id=$2, updated_at=NOW()
 WHERE id=$1 AND upstream_conversation_id IS NULL;`
	// Zero rows is fine: a concurrent turn already learned the id.
	if _, err := execSQL(ctx, r.pool, tx, q, id, upstreamID); err != nil {
		return fmt.Errorf("set upstream id: %w", err)
	}
	return nil
}

// SoftDelete flags the row. Messages stay untouched so history and counts
// remain auditable.
func (r *conversationRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE conversations SET deleted=TRUE, deleted_at=NOW(), updated_at=NOW() WHERE id=$1 AND NOT deleted;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return fmt.Errorf("soft delete conversation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *messageRepo {
	return &messageRepo{pool: pool}
}

const msgColumns = `
id, conversation_id, role, content, deleted, deleted_at, created_at`

func (r *messageRepo) Save(ctx context.Context, tx repository.Tx, m *model.Message) error {
	const q = `
INSERT INTO messages (id, conversation_id, role, content, deleted, deleted_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.ConversationID, m.Role, m.Content, m.Deleted, m.DeletedAt, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, tx repository.Tx, conversationID string) ([]*model.Message, error) {
	const q = `
SELECT ` + msgColumns + `
  FROM messages
 WHERE conversation_id=$1 AND NOT deleted
 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Deleted, &m.DeletedAt, &m.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// CountUserMessages is the per-conversation quota counter. Derived by
// counting rather than kept as a cached integer, so it stays correct after
// message deletions.
func (r *messageRepo) CountUserMessages(ctx context.Context, tx repository.Tx, conversationID string) (int, error) {
	const q = `SELECT COUNT(*) FROM messages WHERE conversation_id=$1 AND role='user' AND NOT deleted;`
	row := pickRow(ctx, r.pool, tx, q, conversationID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return n, nil
}

func (r *messageRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE messages SET deleted=TRUE, deleted_at=NOW() WHERE id=$1 AND NOT deleted;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
