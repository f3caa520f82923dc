package messages

import (
	"context"
	"errors"
	"testing"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/models"
	"github.com/chatapi/backend/internal/repositories"
)

type inMemoryMessageStore struct {
	messages    map[string]models.Message
	attachments map[string][]models.MessageAttachment
	usernames   map[string]string
}

func newInMemoryMessageStore() *inMemoryMessageStore {
	return &inMemoryMessageStore{
		messages:    make(map[string]models.Message),
		attachments: make(map[string][]models.MessageAttachment),
		usernames:   map[string]string{"user-a": "alice", "user-b": "bob"},
	}
}

func (s *inMemoryMessageStore) CreateWithAttachments(_ context.Context, message models.Message, attachments []models.MessageAttachment) error {
	s.messages[message.ID] = message
	s.attachments[message.ID] = attachments
	return nil
}

func (s *inMemoryMessageStore) FindByID(_ context.Context, id string) (models.Message, error) {
	message, ok := s.messages[id]
	if !ok {
		return models.Message{}, repositories.ErrNotFound
	}
	message.Sender = &models.User{ID: message.SenderID, Username: s.usernames[message.SenderID]}
	message.Receiver = &models.User{ID: message.ReceiverID, Username: s.usernames[message.ReceiverID]}
	message.Attachments = append([]models.MessageAttachment(nil), s.attachments[id]...)
	return message, nil
}

func (s *inMemoryMessageStore) UpdateWithAttachments(_ context.Context, message models.Message, attachments []models.MessageAttachment, replace bool) error {
	if _, ok := s.messages[message.ID]; !ok {
		return repositories.ErrNotFound
	}
	message.Sender, message.Receiver, message.Attachments = nil, nil, nil
	s.messages[message.ID] = message
	if replace {
		s.attachments[message.ID] = attachments
	}
	return nil
}

func (s *inMemoryMessageStore) ListConversation(_ context.Context, userID, otherID string) ([]models.Message, error) {
	var out []models.Message
	for id, m := range s.messages {
		if (m.SenderID == userID && m.ReceiverID == otherID) || (m.SenderID == otherID && m.ReceiverID == userID) {
			loaded, _ := s.FindByID(context.Background(), id)
			out = append(out, loaded)
		}
	}
	return out, nil
}

func (s *inMemoryMessageStore) MarkConversationRead(_ context.Context, receiverID, senderID string) error {
	for id, m := range s.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID {
			m.IsRead = true
			s.messages[id] = m
		}
	}
	return nil
}

func authedCtx(userID string) context.Context {
	return auth.WithUser(context.Background(), models.User{ID: userID, Username: map[string]string{"user-a": "alice", "user-b": "bob"}[userID]})
}

func TestServiceCreate(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)

	message, err := service.Create(authedCtx("user-a"), CreateCommand{
		SenderID:   "user-a",
		ReceiverID: "user-b",
		Body:       "hi",
		Attachments: []AttachmentSpec{
			{UploadID: "img1", Caption: "holiday"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if message.ID == "" {
		t.Fatal("expected message id to be assigned")
	}
	if message.Sender == nil || message.Sender.Username != "alice" {
		t.Fatalf("expected sender to be loaded, got %+v", message.Sender)
	}
	if len(message.Attachments) != 1 || message.Attachments[0].UploadID != "img1" {
		t.Fatalf("expected one attachment referencing img1, got %+v", message.Attachments)
	}
	if message.Attachments[0].MessageID != message.ID {
		t.Fatal("attachment must reference its message")
	}
}

func TestServiceCreateForbidsSpoofedSender(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)

	// user-a claims to send as user-b.
	_, err := service.Create(authedCtx("user-a"), CreateCommand{
		SenderID:   "user-b",
		ReceiverID: "user-a",
		Body:       "forged",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(store.messages) != 0 {
		t.Fatal("forged message must not be persisted")
	}

	// Anonymous context is forbidden too.
	_, err = service.Create(context.Background(), CreateCommand{SenderID: "user-a", ReceiverID: "user-b", Body: "hi"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous caller, got %v", err)
	}
}

func TestServiceCreateValidation(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)

	_, err := service.Create(authedCtx("user-a"), CreateCommand{SenderID: "user-a", Body: "hi"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing receiver, got %v", err)
	}

	_, err = service.Create(authedCtx("user-a"), CreateCommand{SenderID: "user-a", ReceiverID: "user-b"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty body without attachments, got %v", err)
	}

	_, err = service.Create(authedCtx("user-a"), CreateCommand{
		SenderID:    "user-a",
		ReceiverID:  "user-b",
		Attachments: []AttachmentSpec{{UploadID: "  "}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank upload id, got %v", err)
	}
}

func createSeedMessage(t *testing.T, service *Service, attachments []AttachmentSpec) models.Message {
	t.Helper()
	message, err := service.Create(authedCtx("user-a"), CreateCommand{
		SenderID:    "user-a",
		ReceiverID:  "user-b",
		Body:        "original",
		Attachments: attachments,
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return message
}

func TestServiceUpdateReplacesAttachmentsWithShorterList(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)
	message := createSeedMessage(t, service, []AttachmentSpec{
		{UploadID: "img1"}, {UploadID: "img2"}, {UploadID: "img3"},
	})

	updated, err := service.Update(authedCtx("user-a"), message.ID, UpdateCommand{
		Attachments: []AttachmentSpec{{UploadID: "img9"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(updated.Attachments) != 1 || updated.Attachments[0].UploadID != "img9" {
		t.Fatalf("expected attachment set replaced with [img9], got %+v", updated.Attachments)
	}
}

func TestServiceUpdateEmptyListClearsAttachments(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)
	message := createSeedMessage(t, service, []AttachmentSpec{{UploadID: "img1"}, {UploadID: "img2"}})

	updated, err := service.Update(authedCtx("user-a"), message.ID, UpdateCommand{
		Attachments: []AttachmentSpec{},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(updated.Attachments) != 0 {
		t.Fatalf("expected attachments cleared, got %+v", updated.Attachments)
	}
}

func TestServiceUpdateWithoutAttachmentsLeavesSetUntouched(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)
	message := createSeedMessage(t, service, []AttachmentSpec{{UploadID: "img1"}, {UploadID: "img2"}})

	body := "edited"
	updated, err := service.Update(authedCtx("user-a"), message.ID, UpdateCommand{Body: &body})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Body != "edited" {
		t.Fatalf("expected body updated, got %q", updated.Body)
	}
	if len(updated.Attachments) != 2 {
		t.Fatalf("expected attachment set untouched, got %+v", updated.Attachments)
	}
}

func TestServiceUpdateMissingMessage(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)

	body := "edited"
	_, err := service.Update(authedCtx("user-a"), "missing", UpdateCommand{Body: &body})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceConversationMarksRead(t *testing.T) {
	store := newInMemoryMessageStore()
	service := NewService(store)

	sent, err := service.Create(authedCtx("user-a"), CreateCommand{
		SenderID: "user-a", ReceiverID: "user-b", Body: "hello bob",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sent.IsRead {
		t.Fatal("new message should start unread")
	}

	// Bob opens the conversation; Alice's message becomes read.
	messages, err := service.Conversation(authedCtx("user-b"), "user-a")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	reloaded, err := store.FindByID(context.Background(), sent.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsRead {
		t.Fatal("expected message marked read after receiver viewed the conversation")
	}
}
