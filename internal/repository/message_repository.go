package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hubso/backend/internal/apperrors"
	"github.com/hubso/backend/internal/database"
	"github.com/hubso/backend/internal/models"
)

// MessageRepository owns message rows. Messages are immutable once
// created except for read_at and deletion by their sender.
type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	m.id, m.conversation_id, m.sender_id, m.content, m.type, m.parent_id, m.read_at, m.created_at, m.updated_at,
	u.id, u.email, u.display_name, u.avatar_url, u.created_at, u.updated_at
`

func scanMessage(row interface{ Scan(...interface{}) error }) (*models.Message, error) {
	msg := &models.Message{}
	sender := &models.User{}
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.Type,
		&msg.ParentID,
		&msg.ReadAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&sender.ID,
		&sender.Email,
		&sender.DisplayName,
		&sender.AvatarURL,
		&sender.CreatedAt,
		&sender.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Sender = sender
	return msg, nil
}

// requireParticipant resolves the conversation and gates on membership
func (r *MessageRepository) requireParticipant(conversationID, userID uuid.UUID) error {
	var convExists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&convExists); err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if !convExists {
		return apperrors.NotFound("conversation not found")
	}

	var isMember bool
	query := `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`
	if err := r.db.QueryRow(query, conversationID, userID).Scan(&isMember); err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return apperrors.Forbidden("not a participant")
	}

	return nil
}

// Send persists a message and touches the conversation's updated_at.
// The returned row is canonical: it is what gets broadcast to the
// conversation room, on both the socket and the REST path.
func (r *MessageRepository) Send(conversationID, senderID uuid.UUID, content, msgType string, parentID *uuid.UUID) (*models.Message, error) {
	if err := r.requireParticipant(conversationID, senderID); err != nil {
		return nil, err
	}

	if msgType == "" {
		msgType = models.MessageText
	}
	if !models.ValidMessageType(msgType) {
		return nil, apperrors.InvalidOperation(fmt.Sprintf("unknown message type %q", msgType))
	}

	if parentID != nil {
		var parentConv uuid.UUID
		err := r.db.QueryRow(`SELECT conversation_id FROM messages WHERE id = $1`, *parentID).Scan(&parentConv)
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("parent message not found")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check parent message: %w", err)
		}
		if parentConv != conversationID {
			return nil, apperrors.InvalidOperation("parent message belongs to another conversation")
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New()
	_, err = tx.Exec(
		`INSERT INTO messages (id, conversation_id, sender_id, content, type, parent_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		id, conversationID, senderID, content, msgType, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID); err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}

	return r.GetByID(id)
}

// GetByID retrieves a message with its sender preview
func (r *MessageRepository) GetByID(id uuid.UUID) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		INNER JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1
	`

	msg, err := scanMessage(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// ListPage returns one cursor page of messages, oldest first. The
// cursor is the id of the last message the caller has already seen;
// pages walk backwards in time from it. As a side effect every unread
// message from another sender is marked read — this and
// MarkConversationRead are the only read-receipt triggers.
func (r *MessageRepository) ListPage(conversationID, requesterID uuid.UUID, cursor *uuid.UUID, limit int) (*models.MessagePage, error) {
	if err := r.requireParticipant(conversationID, requesterID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	var rows *sql.Rows
	var err error

	if cursor != nil {
		var cursorCreated time.Time
		var cursorConv uuid.UUID
		cerr := r.db.QueryRow(`SELECT created_at, conversation_id FROM messages WHERE id = $1`, *cursor).Scan(&cursorCreated, &cursorConv)
		if cerr == sql.ErrNoRows || (cerr == nil && cursorConv != conversationID) {
			return nil, apperrors.InvalidOperation("cursor does not resolve to a message in this conversation")
		}
		if cerr != nil {
			return nil, fmt.Errorf("failed to resolve cursor: %w", cerr)
		}

		query := `
			SELECT ` + messageColumns + `
			FROM messages m
			INNER JOIN users u ON m.sender_id = u.id
			WHERE m.conversation_id = $1
			  AND (m.created_at < $2 OR (m.created_at = $2 AND m.id < $3))
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $4
		`
		rows, err = r.db.Query(query, conversationID, cursorCreated, *cursor, limit+1)
	} else {
		query := `
			SELECT ` + messageColumns + `
			FROM messages m
			INNER JOIN users u ON m.sender_id = u.id
			WHERE m.conversation_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		`
		rows, err = r.db.Query(query, conversationID, limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	newestFirst := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		newestFirst = append(newestFirst, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	hasMore := len(newestFirst) > limit
	if hasMore {
		newestFirst = newestFirst[:limit]
	}

	// Reverse to chronological order for the caller
	messages := make([]models.Message, len(newestFirst))
	for i, msg := range newestFirst {
		messages[len(newestFirst)-1-i] = msg
	}

	var nextCursor *uuid.UUID
	if hasMore && len(messages) > 0 {
		oldest := messages[0].ID
		nextCursor = &oldest
	}

	if _, err := r.markRead(conversationID, requesterID); err != nil {
		return nil, err
	}

	return &models.MessagePage{
		Messages:   messages,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// MarkConversationRead marks every unread message from other senders
// as read and returns how many rows changed. Idempotent: a second call
// reports zero.
func (r *MessageRepository) MarkConversationRead(conversationID, userID uuid.UUID) (int64, error) {
	if err := r.requireParticipant(conversationID, userID); err != nil {
		return 0, err
	}
	return r.markRead(conversationID, userID)
}

func (r *MessageRepository) markRead(conversationID, userID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE messages SET read_at = NOW() WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL`,
		conversationID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return updated, nil
}

// Delete removes a message. Only the original sender may delete it.
func (r *MessageRepository) Delete(messageID, userID uuid.UUID) error {
	var senderID uuid.UUID
	err := r.db.QueryRow(`SELECT sender_id FROM messages WHERE id = $1`, messageID).Scan(&senderID)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("message not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	if senderID != userID {
		return apperrors.Forbidden("cannot delete another user's message")
	}

	if _, err := r.db.Exec(`DELETE FROM messages WHERE id = $1`, messageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

// UnreadCounts returns unread message counts per conversation for a
// user in a single grouped scan. Derived, never a stored counter.
func (r *MessageRepository) UnreadCounts(userID uuid.UUID) (map[uuid.UUID]int, error) {
	query := `
		SELECT m.conversation_id, COUNT(*)
		FROM messages m
		INNER JOIN conversation_participants cp
			ON cp.conversation_id = m.conversation_id AND cp.user_id = $1
		WHERE m.sender_id <> $1 AND m.read_at IS NULL
		GROUP BY m.conversation_id
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", err)
	}
	defer rows.Close()

	counts := map[uuid.UUID]int{}
	for rows.Next() {
		var conversationID uuid.UUID
		var count int
		if err := rows.Scan(&conversationID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[conversationID] = count
	}

	return counts, rows.Err()
}
