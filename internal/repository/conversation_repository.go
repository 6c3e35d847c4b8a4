package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hubso/backend/internal/apperrors"
	"github.com/hubso/backend/internal/database"
	"github.com/hubso/backend/internal/models"
)

// ConversationRepository owns conversations and their participant sets.
// Authorization for reads and writes is enforced here, not at the
// transport layer: room membership on the gateway grants no data access.
type ConversationRepository struct {
	db *database.DB
}

func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// directKey builds the canonical key for an unordered user pair. The
// unique constraint on it is what makes concurrent DM creation safe.
func directKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}

const conversationColumns = `id, type, name, avatar_url, created_at, updated_at`

func scanConversation(row interface{ Scan(...interface{}) error }) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := row.Scan(
		&conv.ID,
		&conv.Type,
		&conv.Name,
		&conv.AvatarURL,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetOrCreateDirect returns the single DIRECT conversation for a user
// pair, creating it when absent. The race between two simultaneous
// callers is resolved by the direct_key unique constraint: the loser
// re-reads the winner's row.
func (r *ConversationRepository) GetOrCreateDirect(userID, recipientID uuid.UUID) (*models.Conversation, error) {
	if userID == recipientID {
		return nil, apperrors.InvalidOperation("cannot start a conversation with yourself")
	}

	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, recipientID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check recipient: %w", err)
	}
	if !exists {
		return nil, apperrors.NotFound("recipient does not exist")
	}

	key := directKey(userID, recipientID)

	conv, err := r.getByDirectKey(key)
	if err == nil {
		return conv, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up direct conversation: %w", err)
	}

	created, err := r.createDirect(key, userID, recipientID)
	if err == nil {
		return created, nil
	}

	// Unique violation on direct_key: another caller created the row
	// between our lookup and insert. Their row is the canonical one.
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		conv, selErr := r.getByDirectKey(key)
		if selErr != nil {
			return nil, apperrors.Conflict("concurrent direct conversation creation")
		}
		return conv, nil
	}

	return nil, fmt.Errorf("failed to create direct conversation: %w", err)
}

func (r *ConversationRepository) getByDirectKey(key string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE direct_key = $1`
	return scanConversation(r.db.QueryRow(query, key))
}

func (r *ConversationRepository) createDirect(key string, userID, recipientID uuid.UUID) (*models.Conversation, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New()
	_, err = tx.Exec(
		`INSERT INTO conversations (id, type, direct_key, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())`,
		id, models.ConversationDirect, key,
	)
	if err != nil {
		return nil, err
	}

	for _, uid := range []uuid.UUID{userID, recipientID} {
		_, err = tx.Exec(
			`INSERT INTO conversation_participants (id, conversation_id, user_id, joined_at) VALUES ($1, $2, $3, NOW())`,
			uuid.New(), id, uid,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(id)
}

// CreateGroup creates a GROUP conversation with the de-duplicated
// participant set including the creator
func (r *ConversationRepository) CreateGroup(creatorID uuid.UUID, name string, participantIDs []uuid.UUID) (*models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidOperation("group name is required")
	}

	seen := map[uuid.UUID]bool{creatorID: true}
	allIDs := []uuid.UUID{creatorID}
	for _, id := range participantIDs {
		if !seen[id] {
			seen[id] = true
			allIDs = append(allIDs, id)
		}
	}
	if len(allIDs) < 2 {
		return nil, apperrors.InvalidOperation("a group needs at least 2 participants")
	}

	idStrings := make([]string, len(allIDs))
	for i, id := range allIDs {
		idStrings[i] = id.String()
	}
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE id = ANY($1)`, pq.Array(idStrings)).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to resolve participants: %w", err)
	}
	if count != len(allIDs) {
		return nil, apperrors.NotFound("one or more participants do not exist")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New()
	_, err = tx.Exec(
		`INSERT INTO conversations (id, type, name, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())`,
		id, models.ConversationGroup, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	for _, uid := range allIDs {
		_, err = tx.Exec(
			`INSERT INTO conversation_participants (id, conversation_id, user_id, joined_at) VALUES ($1, $2, $3, NOW())`,
			uuid.New(), id, uid,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group creation: %w", err)
	}

	return r.GetByID(id)
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(id uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conv, err := scanConversation(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// ListForUser retrieves all conversations a user participates in,
// newest activity first, each with participants and a last-message preview
func (r *ConversationRepository) ListForUser(userID uuid.UUID) ([]models.Conversation, error) {
	query := `
		SELECT c.id, c.type, c.name, c.avatar_url, c.created_at, c.updated_at
		FROM conversations c
		INNER JOIN conversation_participants cp ON c.id = cp.conversation_id
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	for i := range conversations {
		members, err := r.GetMembers(conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].Participants = members

		last, err := r.lastMessage(conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].LastMessage = last

		unread, err := r.unreadCount(conversations[i].ID, userID)
		if err != nil {
			return nil, err
		}
		conversations[i].UnreadCount = unread
	}

	return conversations, nil
}

func (r *ConversationRepository) unreadCount(conversationID, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL
	`

	var count int
	if err := r.db.QueryRow(query, conversationID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

func (r *ConversationRepository) lastMessage(conversationID uuid.UUID) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, type, parent_id, read_at, created_at, updated_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	msg := &models.Message{}
	err := r.db.QueryRow(query, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.Type,
		&msg.ParentID,
		&msg.ReadAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last message: %w", err)
	}
	return msg, nil
}

// GetMembers retrieves all participants of a conversation
func (r *ConversationRepository) GetMembers(conversationID uuid.UUID) ([]models.User, error) {
	query := `
		SELECT u.id, u.email, u.display_name, u.avatar_url, u.created_at, u.updated_at
		FROM users u
		INNER JOIN conversation_participants cp ON u.id = cp.user_id
		WHERE cp.conversation_id = $1
		ORDER BY cp.joined_at
	`

	rows, err := r.db.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	members := []models.User{}
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.DisplayName,
			&user.AvatarURL,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, user)
	}

	return members, rows.Err()
}

// IsMember checks if a user is a participant of a conversation
func (r *ConversationRepository) IsMember(conversationID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`

	var exists bool
	err := r.db.QueryRow(query, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}

// requireGroupMember loads the conversation, ensures it is a GROUP and
// that requesterID participates in it
func (r *ConversationRepository) requireGroupMember(conversationID, requesterID uuid.UUID) (*models.Conversation, error) {
	conv, err := r.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, apperrors.InvalidOperation("not a group conversation")
	}

	isMember, err := r.IsMember(conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.Forbidden("not a participant")
	}

	return conv, nil
}

// UpdateGroup updates a group conversation's name and/or avatar
func (r *ConversationRepository) UpdateGroup(conversationID, requesterID uuid.UUID, name, avatarURL *string) (*models.Conversation, error) {
	if _, err := r.requireGroupMember(conversationID, requesterID); err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.InvalidOperation("group name cannot be empty")
		}
		name = &trimmed
	}

	query := `
		UPDATE conversations
		SET name = COALESCE($1, name), avatar_url = COALESCE($2, avatar_url), updated_at = NOW()
		WHERE id = $3
	`
	if _, err := r.db.Exec(query, name, avatarURL, conversationID); err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return r.GetByID(conversationID)
}

// AddParticipant adds a user to a group conversation. Adding an
// existing participant is a no-op.
func (r *ConversationRepository) AddParticipant(conversationID, requesterID, userID uuid.UUID) error {
	if _, err := r.requireGroupMember(conversationID, requesterID); err != nil {
		return err
	}

	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return apperrors.NotFound("user does not exist")
	}

	query := `
		INSERT INTO conversation_participants (id, conversation_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`
	if _, err := r.db.Exec(query, uuid.New(), conversationID, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

// RemoveParticipant removes a user from a group conversation. Removing
// the last participant leaves the conversation and its history intact.
func (r *ConversationRepository) RemoveParticipant(conversationID, requesterID, userID uuid.UUID) error {
	if _, err := r.requireGroupMember(conversationID, requesterID); err != nil {
		return err
	}

	query := `DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`
	if _, err := r.db.Exec(query, conversationID, userID); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	return nil
}

// Leave removes the caller from a group conversation
func (r *ConversationRepository) Leave(conversationID, userID uuid.UUID) error {
	return r.RemoveParticipant(conversationID, userID, userID)
}
