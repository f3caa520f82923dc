package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chatapi/backend/internal/logging"
	"github.com/chatapi/backend/internal/messages"
	"github.com/chatapi/backend/internal/models"
)

// MessageHandler serves direct-message creation, updates and conversation
// listing.
type MessageHandler struct {
	Messages MessageService
}

// Collection handles /api/v1/messages: POST sends, GET lists a conversation.
func (h MessageHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.conversation(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item handles PATCH /api/v1/messages/{id}.
func (h MessageHandler) Item(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/messages/")
	if id == "" || strings.Contains(id, "/") {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "message not found"})
		return
	}

	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.update(w, r, id)
}

func (h MessageHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Messages == nil {
		logger.Error("message service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "message service unavailable"})
		return
	}

	var req messageCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid message payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cmd := messages.CreateCommand{
		SenderID:    strings.TrimSpace(req.SenderID),
		ReceiverID:  strings.TrimSpace(req.ReceiverID),
		Body:        req.Body,
		Attachments: toAttachmentSpecs(req.Attachments),
	}

	message, err := h.Messages.Create(ctx, cmd)
	if err != nil {
		respondMessageError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newMessageResponse(message))
}

func (h MessageHandler) conversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Messages == nil {
		logger.Error("message service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "message service unavailable"})
		return
	}

	otherID := strings.TrimSpace(r.URL.Query().Get("with"))
	if otherID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "query parameter 'with' is required"})
		return
	}

	conversation, err := h.Messages.Conversation(ctx, otherID)
	if err != nil {
		respondMessageError(ctx, w, err)
		return
	}

	payload := make([]messageResponse, 0, len(conversation))
	for _, message := range conversation {
		payload = append(payload, newMessageResponse(message))
	}
	respondJSON(ctx, w, http.StatusOK, payload)
}

func (h MessageHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Messages == nil {
		logger.Error("message service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "message service unavailable"})
		return
	}

	var req messageUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid message payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cmd := messages.UpdateCommand{
		Body:   req.Body,
		IsRead: req.IsRead,
	}
	if req.Attachments != nil {
		cmd.Attachments = toAttachmentSpecs(*req.Attachments)
		if cmd.Attachments == nil {
			cmd.Attachments = []messages.AttachmentSpec{}
		}
	}

	message, err := h.Messages.Update(ctx, id, cmd)
	if err != nil {
		respondMessageError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newMessageResponse(message))
}

func respondMessageError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messages.ErrValidation):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, messages.ErrForbidden):
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not allowed"})
	case errors.Is(err, messages.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "message not found"})
	default:
		logging.FromContext(ctx).Error("message operation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "message operation failed"})
	}
}

type messageCreateRequest struct {
	SenderID    string              `json:"senderId"`
	ReceiverID  string              `json:"receiverId"`
	Body        string              `json:"body"`
	Attachments []attachmentPayload `json:"attachments"`
}

// Attachments distinguishes "absent" (nil pointer, keep existing set) from
// "empty" (clear all attachments).
type messageUpdateRequest struct {
	Body        *string              `json:"body"`
	IsRead      *bool                `json:"isRead"`
	Attachments *[]attachmentPayload `json:"attachments"`
}

type attachmentPayload struct {
	UploadID string `json:"uploadId"`
	Caption  string `json:"caption"`
}

func toAttachmentSpecs(payloads []attachmentPayload) []messages.AttachmentSpec {
	if payloads == nil {
		return nil
	}
	specs := make([]messages.AttachmentSpec, 0, len(payloads))
	for _, p := range payloads {
		specs = append(specs, messages.AttachmentSpec{UploadID: p.UploadID, Caption: p.Caption})
	}
	return specs
}

type messageResponse struct {
	ID          string               `json:"id"`
	SenderID    string               `json:"senderId"`
	ReceiverID  string               `json:"receiverId"`
	Body        string               `json:"body"`
	IsRead      bool                 `json:"isRead"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Sender      *participantResponse `json:"sender,omitempty"`
	Receiver    *participantResponse `json:"receiver,omitempty"`
	Attachments []attachmentResponse `json:"attachments"`
}

type participantResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type attachmentResponse struct {
	ID       string `json:"id"`
	UploadID string `json:"uploadId"`
	Caption  string `json:"caption,omitempty"`
}

func newMessageResponse(message models.Message) messageResponse {
	resp := messageResponse{
		ID:          message.ID,
		SenderID:    message.SenderID,
		ReceiverID:  message.ReceiverID,
		Body:        message.Body,
		IsRead:      message.IsRead,
		CreatedAt:   message.CreatedAt,
		UpdatedAt:   message.UpdatedAt,
		Attachments: make([]attachmentResponse, 0, len(message.Attachments)),
	}
	if message.Sender != nil {
		resp.Sender = &participantResponse{ID: message.Sender.ID, Username: message.Sender.Username}
	}
	if message.Receiver != nil {
		resp.Receiver = &participantResponse{ID: message.Receiver.ID, Username: message.Receiver.Username}
	}
	for _, att := range message.Attachments {
		resp.Attachments = append(resp.Attachments, attachmentResponse{ID: att.ID, UploadID: att.UploadID, Caption: att.Caption})
	}
	return resp
}
