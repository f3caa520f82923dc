package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatapi/backend/internal/db"
	"github.com/chatapi/backend/internal/models"
)

// PostgresMessageRepository provides PostgreSQL-backed persistence for
// messages and their attachments.
type PostgresMessageRepository struct {
	pool db.Pool
}

// NewPostgresMessageRepository constructs a message repository backed by PostgreSQL.
func NewPostgresMessageRepository(pool db.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// CreateWithAttachments inserts the message and bulk-inserts its attachments
// in one transaction, so a failed attachment insert rolls the message back.
func (r *PostgresMessageRepository) CreateWithAttachments(ctx context.Context, message models.Message, attachments []models.MessageAttachment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin message transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO messages (id, sender_id, receiver_id, body, is_read, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, message.ID, message.SenderID, message.ReceiverID, message.Body, message.IsRead, message.CreatedAt, message.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert message: %w", err)
	}

	if err := insertAttachments(ctx, tx, attachments); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit message transaction: %w", err)
	}

	return nil
}

// UpdateWithAttachments updates the message row and, when replace is true,
// deletes the existing attachment set and bulk-inserts the new one. The
// whole write is one transaction: concurrent readers see either the old set
// or the new one, never the gap in between.
func (r *PostgresMessageRepository) UpdateWithAttachments(ctx context.Context, message models.Message, attachments []models.MessageAttachment, replace bool) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin message transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE messages
        SET body = $2, is_read = $3, updated_at = $4
        WHERE id = $1
    `, message.ID, message.Body, message.IsRead, message.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if replace {
		if _, err := tx.Exec(ctx, `DELETE FROM message_attachments WHERE message_id = $1`, message.ID); err != nil {
			return fmt.Errorf("delete attachments: %w", err)
		}
		if err := insertAttachments(ctx, tx, attachments); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit message transaction: %w", err)
	}

	return nil
}

func insertAttachments(ctx context.Context, tx pgx.Tx, attachments []models.MessageAttachment) error {
	if len(attachments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, att := range attachments {
		batch.Queue(`
            INSERT INTO message_attachments (id, message_id, upload_id, caption)
            VALUES ($1, $2, $3, $4)
        `, att.ID, att.MessageID, att.UploadID, att.Caption)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range attachments {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrNotFound
			}
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	return results.Close()
}

// FindByID loads a message with its sender, receiver and attachments.
func (r *PostgresMessageRepository) FindByID(ctx context.Context, id string) (models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT m.id, m.sender_id, m.receiver_id, m.body, m.is_read, m.created_at, m.updated_at,
               s.username, r.username
        FROM messages m
        JOIN users s ON s.id = m.sender_id
        JOIN users r ON r.id = m.receiver_id
        WHERE m.id = $1
    `, id)

	var (
		message          models.Message
		senderUsername   string
		receiverUsername string
	)
	if err := row.Scan(&message.ID, &message.SenderID, &message.ReceiverID, &message.Body, &message.IsRead,
		&message.CreatedAt, &message.UpdatedAt, &senderUsername, &receiverUsername); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("select message: %w", err)
	}

	message.Sender = &models.User{ID: message.SenderID, Username: senderUsername}
	message.Receiver = &models.User{ID: message.ReceiverID, Username: receiverUsername}

	attachments, err := r.listAttachments(ctx, conn, message.ID)
	if err != nil {
		return models.Message{}, err
	}
	message.Attachments = attachments

	return message, nil
}

func (r *PostgresMessageRepository) listAttachments(ctx context.Context, conn *pgxpool.Conn, messageID string) ([]models.MessageAttachment, error) {
	rows, err := conn.Query(ctx, `
        SELECT id, message_id, upload_id, caption
        FROM message_attachments
        WHERE message_id = $1
        ORDER BY id
    `, messageID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []models.MessageAttachment
	for rows.Next() {
		var att models.MessageAttachment
		if err := rows.Scan(&att.ID, &att.MessageID, &att.UploadID, &att.Caption); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}

	return attachments, nil
}

// ListConversation returns the messages exchanged between two users, newest
// first, with attachments loaded.
func (r *PostgresMessageRepository) ListConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT m.id, m.sender_id, m.receiver_id, m.body, m.is_read, m.created_at, m.updated_at,
               s.username, r.username
        FROM messages m
        JOIN users s ON s.id = m.sender_id
        JOIN users r ON r.id = m.receiver_id
        WHERE (m.sender_id = $1 AND m.receiver_id = $2)
           OR (m.sender_id = $2 AND m.receiver_id = $1)
        ORDER BY m.created_at DESC
        LIMIT 200
    `, userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			message          models.Message
			senderUsername   string
			receiverUsername string
		)
		if err := rows.Scan(&message.ID, &message.SenderID, &message.ReceiverID, &message.Body, &message.IsRead,
			&message.CreatedAt, &message.UpdatedAt, &senderUsername, &receiverUsername); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		message.Sender = &models.User{ID: message.SenderID, Username: senderUsername}
		message.Receiver = &models.User{ID: message.ReceiverID, Username: receiverUsername}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation: %w", err)
	}

	for i := range messages {
		attachments, err := r.listAttachments(ctx, conn, messages[i].ID)
		if err != nil {
			return nil, err
		}
		messages[i].Attachments = attachments
	}

	return messages, nil
}

// MarkConversationRead marks messages sent by senderID to receiverID as read.
func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, receiverID, senderID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        UPDATE messages
        SET is_read = TRUE
        WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE
    `, receiverID, senderID)
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}

	return nil
}

var _ MessageRepository = (*PostgresMessageRepository)(nil)
