package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatapi/backend/internal/logging"
	"github.com/chatapi/backend/internal/models"
)

// maxUploadBytes caps multipart uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// UploadHandler accepts multipart file uploads and records their metadata.
type UploadHandler struct {
	Uploads UploadStore
	Storage FileStorage
	Limiter RateLimiter
	NowFunc func() time.Time
}

// Create handles POST /api/v1/uploads.
func (h UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := logging.StartSpan(r.Context(), "uploads.create")
	defer span.End()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "uploads") {
		logger.Warn("upload rate limited", "remote", r.RemoteAddr)
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads"})
		return
	}

	if h.Uploads == nil || h.Storage == nil {
		logger.Error("upload dependencies unavailable", "hasStore", h.Uploads != nil, "hasStorage", h.Storage != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "upload service unavailable"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid multipart payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart payload"})
		return
	}

	file, header, err := r.FormFile("file_upload")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "file_upload field is required"})
			return
		}
		logger.Warn("failed to read upload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unable to read uploaded file"})
		return
	}
	defer file.Close()

	id := uuid.NewString()
	location, err := h.Storage.Save(ctx, objectKey(id, header), file)
	if err != nil {
		logger.Error("failed to store upload", "error", err, "filename", header.Filename)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store file"})
		return
	}

	upload := models.FileUpload{
		ID:          id,
		Location:    location,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		CreatedAt:   h.now(),
	}

	if err := h.Uploads.Create(ctx, upload); err != nil {
		logger.Error("failed to record upload", "error", err, "uploadId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to record upload"})
		return
	}

	logger.Info("upload stored", "uploadId", id, "size", header.Size)
	respondJSON(ctx, w, http.StatusCreated, uploadResponse{
		ID:          upload.ID,
		Location:    upload.Location,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		CreatedAt:   upload.CreatedAt,
	})
}

func objectKey(id string, header *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	return fmt.Sprintf("uploads/%s%s", id, ext)
}

func (h UploadHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type uploadResponse struct {
	ID          string    `json:"id"`
	Location    string    `json:"location"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}
