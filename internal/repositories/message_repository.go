package repositories

import (
	"context"

	"github.com/chatapi/backend/internal/models"
)

// MessageRepository exposes data access for messages and their attachment
// sets. Attachment writes always travel with their message in a single
// transaction.
type MessageRepository interface {
	// CreateWithAttachments inserts the message row and bulk-inserts its
	// attachments as one transaction.
	CreateWithAttachments(ctx context.Context, message models.Message, attachments []models.MessageAttachment) error
	// FindByID loads a message with sender, receiver and attachments.
	FindByID(ctx context.Context, id string) (models.Message, error)
	// UpdateWithAttachments updates the message row and, when replace is
	// true, swaps the whole attachment set (delete then bulk insert) within
	// the same transaction.
	UpdateWithAttachments(ctx context.Context, message models.Message, attachments []models.MessageAttachment, replace bool) error
	// ListConversation returns messages between the two users, newest first.
	ListConversation(ctx context.Context, userID, otherID string) ([]models.Message, error)
	// MarkConversationRead marks all unread messages sent by senderID to
	// receiverID as read.
	MarkConversationRead(ctx context.Context, receiverID, senderID string) error
}
