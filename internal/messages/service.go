package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/logging"
	"github.com/chatapi/backend/internal/models"
	"github.com/chatapi/backend/internal/repositories"
)

var (
	// ErrForbidden indicates the caller tried to act on another user's behalf.
	ErrForbidden = errors.New("sender does not match authenticated user")
	// ErrNotFound indicates the referenced message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrValidation indicates a malformed message payload.
	ErrValidation = errors.New("invalid message payload")
)

// MessageStore captures the persistence operations the service relies on.
type MessageStore interface {
	CreateWithAttachments(ctx context.Context, message models.Message, attachments []models.MessageAttachment) error
	FindByID(ctx context.Context, id string) (models.Message, error)
	UpdateWithAttachments(ctx context.Context, message models.Message, attachments []models.MessageAttachment, replace bool) error
	ListConversation(ctx context.Context, userID, otherID string) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, receiverID, senderID string) error
}

// AttachmentSpec describes one attachment to bind to a message.
type AttachmentSpec struct {
	UploadID string
	Caption  string
}

// CreateCommand is the validated input for creating a message.
type CreateCommand struct {
	SenderID    string
	ReceiverID  string
	Body        string
	Attachments []AttachmentSpec
}

// UpdateCommand carries partial updates for a message. A nil Attachments
// slice leaves the existing attachment set untouched; a non-nil slice
// (including an empty one) replaces it wholesale.
type UpdateCommand struct {
	Body        *string
	IsRead      *bool
	Attachments []AttachmentSpec
}

// Service coordinates message writes so a message and its attachment set
// always change together. Authentication is decided upstream at the gate;
// this service only checks that the claimed sender is the caller.
type Service struct {
	store   MessageStore
	NowFunc func() time.Time
}

// NewService constructs a message service on top of the provided store.
func NewService(store MessageStore) *Service {
	if store == nil {
		panic("messages: store must not be nil")
	}
	return &Service{store: store}
}

// Create validates and persists a new message with its attachments, then
// returns it with sender, receiver and attachments loaded.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (models.Message, error) {
	ctx, span := logging.StartSpan(ctx, "messages.create")
	defer span.End()

	caller, ok := auth.UserFromContext(ctx)
	if !ok || caller.ID != cmd.SenderID {
		return models.Message{}, ErrForbidden
	}

	if strings.TrimSpace(cmd.ReceiverID) == "" {
		return models.Message{}, fmt.Errorf("%w: receiver is required", ErrValidation)
	}
	if strings.TrimSpace(cmd.Body) == "" && len(cmd.Attachments) == 0 {
		return models.Message{}, fmt.Errorf("%w: body or attachments required", ErrValidation)
	}

	now := s.now()
	message := models.Message{
		ID:         uuid.NewString(),
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		Body:       cmd.Body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	attachments, err := buildAttachments(message.ID, cmd.Attachments)
	if err != nil {
		return models.Message{}, err
	}

	if err := s.store.CreateWithAttachments(ctx, message, attachments); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Message{}, fmt.Errorf("%w: unknown receiver or upload", ErrValidation)
		}
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}

	return s.reload(ctx, message.ID)
}

// Update applies partial field changes and, when an attachment list is
// supplied, replaces the attachment set atomically. It returns the
// refreshed message.
func (s *Service) Update(ctx context.Context, messageID string, cmd UpdateCommand) (models.Message, error) {
	ctx, span := logging.StartSpan(ctx, "messages.update")
	defer span.End()

	message, err := s.store.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("load message: %w", err)
	}

	if cmd.Body != nil {
		message.Body = *cmd.Body
	}
	if cmd.IsRead != nil {
		message.IsRead = *cmd.IsRead
	}
	message.UpdatedAt = s.now()

	replace := cmd.Attachments != nil
	var attachments []models.MessageAttachment
	if replace {
		attachments, err = buildAttachments(message.ID, cmd.Attachments)
		if err != nil {
			return models.Message{}, err
		}
	}

	if err := s.store.UpdateWithAttachments(ctx, message, attachments, replace); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("update message: %w", err)
	}

	return s.reload(ctx, messageID)
}

// Conversation returns the messages between the caller and the other user,
// newest first, and marks messages the caller received as read.
func (s *Service) Conversation(ctx context.Context, otherID string) ([]models.Message, error) {
	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(otherID) == "" {
		return nil, fmt.Errorf("%w: conversation partner is required", ErrValidation)
	}

	messages, err := s.store.ListConversation(ctx, caller.ID, otherID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}

	if err := s.store.MarkConversationRead(ctx, caller.ID, otherID); err != nil {
		return nil, fmt.Errorf("mark conversation read: %w", err)
	}

	return messages, nil
}

func (s *Service) reload(ctx context.Context, messageID string) (models.Message, error) {
	message, err := s.store.FindByID(ctx, messageID)
	if err != nil {
		return models.Message{}, fmt.Errorf("reload message: %w", err)
	}
	return message, nil
}

func buildAttachments(messageID string, specs []AttachmentSpec) ([]models.MessageAttachment, error) {
	attachments := make([]models.MessageAttachment, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.UploadID) == "" {
			return nil, fmt.Errorf("%w: attachment upload id is required", ErrValidation)
		}
		attachments = append(attachments, models.MessageAttachment{
			ID:        uuid.NewString(),
			MessageID: messageID,
			UploadID:  spec.UploadID,
			Caption:   spec.Caption,
		})
	}
	return attachments, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}
