package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/logging"
	"github.com/chatapi/backend/internal/models"
	"github.com/chatapi/backend/internal/repositories"
)

// ProfileHandler serves profile creation, lookup, update and keyword search.
type ProfileHandler struct {
	Profiles ProfileStore
	Uploads  UploadStore
	NowFunc  func() time.Time
}

// Collection handles /api/v1/profiles: GET searches, POST creates.
func (h ProfileHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.search(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item handles /api/v1/profiles/{id}: GET fetches, PATCH updates.
func (h ProfileHandler) Item(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/profiles/")
	if id == "" || strings.Contains(id, "/") {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "profile not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.fetch(w, r, id)
	case http.MethodPatch:
		h.update(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h ProfileHandler) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "profile service unavailable"})
		return
	}

	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))

	var excludeUserID string
	if caller, ok := auth.UserFromContext(ctx); ok {
		excludeUserID = caller.ID
	}

	profiles, err := h.Profiles.Search(ctx, keyword, excludeUserID)
	if err != nil {
		logger.Error("profile search failed", "error", err, "keyword", keyword)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to search profiles"})
		return
	}

	payload := make([]profileResponse, 0, len(profiles))
	for _, profile := range profiles {
		payload = append(payload, newProfileResponse(profile))
	}
	respondJSON(ctx, w, http.StatusOK, payload)
}

func (h ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "profile service unavailable"})
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	pictureID, err := h.resolvePicture(r, req.ProfilePictureID)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unknown profile picture"})
		return
	}

	now := h.now()
	profile := models.UserProfile{
		ID:               uuid.NewString(),
		UserID:           caller.ID,
		Username:         caller.Username,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Caption:          strings.TrimSpace(req.Caption),
		About:            req.About,
		ProfilePictureID: pictureID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.Profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("profile already exists", "userId", caller.ID)
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "profile already exists"})
			return
		}
		logger.Error("failed to create profile", "error", err, "userId", caller.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create profile"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newProfileResponse(profile))
}

func (h ProfileHandler) fetch(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "profile service unavailable"})
		return
	}

	profile, err := h.Profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "profile not found"})
			return
		}
		logger.Error("failed to load profile", "error", err, "profileId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, newProfileResponse(profile))
}

func (h ProfileHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "profile service unavailable"})
		return
	}

	profile, err := h.Profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "profile not found"})
			return
		}
		logger.Error("failed to load profile", "error", err, "profileId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load profile"})
		return
	}

	if profile.UserID != caller.ID {
		logger.Warn("profile update denied", "profileId", id, "userId", caller.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "cannot modify another user's profile"})
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.FirstName != nil {
		profile.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		profile.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Caption != nil {
		profile.Caption = strings.TrimSpace(*req.Caption)
	}
	if req.About != nil {
		profile.About = *req.About
	}
	if req.ProfilePictureID != nil {
		pictureID, err := h.resolvePicture(r, *req.ProfilePictureID)
		if err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unknown profile picture"})
			return
		}
		profile.ProfilePictureID = pictureID
	}
	profile.UpdatedAt = h.now()

	if err := h.Profiles.Update(ctx, profile); err != nil {
		logger.Error("failed to update profile", "error", err, "profileId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, newProfileResponse(profile))
}

// resolvePicture verifies a referenced upload exists. An empty id clears the
// picture.
func (h ProfileHandler) resolvePicture(r *http.Request, id string) (*string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	if h.Uploads == nil {
		return nil, repositories.ErrNotFound
	}
	if _, err := h.Uploads.FindByID(r.Context(), id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (h ProfileHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type profileRequest struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Caption          string `json:"caption"`
	About            string `json:"about"`
	ProfilePictureID string `json:"profilePictureId"`
}

type profileUpdateRequest struct {
	FirstName        *string `json:"firstName"`
	LastName         *string `json:"lastName"`
	Caption          *string `json:"caption"`
	About            *string `json:"about"`
	ProfilePictureID *string `json:"profilePictureId"`
}

type profileResponse struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Username         string    `json:"username"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Caption          string    `json:"caption"`
	About            string    `json:"about"`
	ProfilePictureID *string   `json:"profilePictureId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func newProfileResponse(profile models.UserProfile) profileResponse {
	return profileResponse{
		ID:               profile.ID,
		UserID:           profile.UserID,
		Username:         profile.Username,
		FirstName:        profile.FirstName,
		LastName:         profile.LastName,
		Caption:          profile.Caption,
		About:            profile.About,
		ProfilePictureID: profile.ProfilePictureID,
		CreatedAt:        profile.CreatedAt,
		UpdatedAt:        profile.UpdatedAt,
	}
}
