package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/models"
	"github.com/chatapi/backend/internal/repositories"
)

type inMemoryProfileStore struct {
	profiles map[string]models.UserProfile
}

func newInMemoryProfileStore() *inMemoryProfileStore {
	return &inMemoryProfileStore{profiles: make(map[string]models.UserProfile)}
}

func (s *inMemoryProfileStore) Create(_ context.Context, profile models.UserProfile) error {
	for _, existing := range s.profiles {
		if existing.UserID == profile.UserID {
			return repositories.ErrConflict
		}
	}
	s.profiles[profile.ID] = profile
	return nil
}

func (s *inMemoryProfileStore) FindByID(_ context.Context, id string) (models.UserProfile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return models.UserProfile{}, repositories.ErrNotFound
	}
	return profile, nil
}

func (s *inMemoryProfileStore) Update(_ context.Context, profile models.UserProfile) error {
	if _, ok := s.profiles[profile.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.profiles[profile.ID] = profile
	return nil
}

func (s *inMemoryProfileStore) Search(_ context.Context, keyword, excludeUserID string) ([]models.UserProfile, error) {
	var matches []models.UserProfile
	needle := strings.ToLower(keyword)
	for _, profile := range s.profiles {
		if profile.UserID == excludeUserID {
			continue
		}
		haystack := strings.ToLower(profile.Username + " " + profile.FirstName + " " + profile.LastName)
		if needle == "" || strings.Contains(haystack, needle) {
			matches = append(matches, profile)
		}
	}
	return matches, nil
}

type inMemoryUploadStore struct {
	uploads map[string]models.FileUpload
}

func newInMemoryUploadStore() *inMemoryUploadStore {
	return &inMemoryUploadStore{uploads: make(map[string]models.FileUpload)}
}

func (s *inMemoryUploadStore) Create(_ context.Context, upload models.FileUpload) error {
	s.uploads[upload.ID] = upload
	return nil
}

func (s *inMemoryUploadStore) FindByID(_ context.Context, id string) (models.FileUpload, error) {
	upload, ok := s.uploads[id]
	if !ok {
		return models.FileUpload{}, repositories.ErrNotFound
	}
	return upload, nil
}

func authedRequest(method, target string, body []byte, user models.User) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	return req.WithContext(auth.WithUser(req.Context(), user))
}

func TestProfileHandlerCreate(t *testing.T) {
	store := newInMemoryProfileStore()
	uploads := newInMemoryUploadStore()
	uploads.uploads["img1"] = models.FileUpload{ID: "img1", Location: "uploads/img1.png"}
	handler := ProfileHandler{Profiles: store, Uploads: uploads}

	body, _ := json.Marshal(profileRequest{FirstName: "Alice", LastName: "Adams", Caption: "hello", ProfilePictureID: "img1"})
	req := authedRequest(http.MethodPost, "/api/v1/profiles", body, models.User{ID: "user-1", Username: "alice"})
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "user-1" || resp.Username != "alice" {
		t.Fatalf("expected owner fields to be set from the caller, got %+v", resp)
	}
	if resp.ProfilePictureID == nil || *resp.ProfilePictureID != "img1" {
		t.Fatalf("expected profile picture img1, got %+v", resp.ProfilePictureID)
	}
}

func TestProfileHandlerCreateUnknownPicture(t *testing.T) {
	handler := ProfileHandler{Profiles: newInMemoryProfileStore(), Uploads: newInMemoryUploadStore()}

	body, _ := json.Marshal(profileRequest{FirstName: "Alice", ProfilePictureID: "missing"})
	req := authedRequest(http.MethodPost, "/api/v1/profiles", body, models.User{ID: "user-1", Username: "alice"})
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestProfileHandlerSearchExcludesCaller(t *testing.T) {
	store := newInMemoryProfileStore()
	store.profiles["p1"] = models.UserProfile{ID: "p1", UserID: "user-1", Username: "alice"}
	store.profiles["p2"] = models.UserProfile{ID: "p2", UserID: "user-2", Username: "albert"}
	store.profiles["p3"] = models.UserProfile{ID: "p3", UserID: "user-3", Username: "bob"}
	handler := ProfileHandler{Profiles: store}

	req := authedRequest(http.MethodGet, "/api/v1/profiles?keyword=al", nil, models.User{ID: "user-1", Username: "alice"})
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp []profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Username != "albert" {
		t.Fatalf("expected only albert to match, got %+v", resp)
	}
}

func TestProfileHandlerUpdateOwnerOnly(t *testing.T) {
	store := newInMemoryProfileStore()
	store.profiles["p1"] = models.UserProfile{ID: "p1", UserID: "user-1", Username: "alice", Caption: "old"}
	handler := ProfileHandler{Profiles: store}

	caption := "new caption"
	body, _ := json.Marshal(profileUpdateRequest{Caption: &caption})

	// Another user may not touch the profile.
	req := authedRequest(http.MethodPatch, "/api/v1/profiles/p1", body, models.User{ID: "user-2", Username: "mallory"})
	rec := httptest.NewRecorder()
	handler.Item(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}

	// The owner may.
	body, _ = json.Marshal(profileUpdateRequest{Caption: &caption})
	req = authedRequest(http.MethodPatch, "/api/v1/profiles/p1", body, models.User{ID: "user-1", Username: "alice"})
	rec = httptest.NewRecorder()
	handler.Item(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if got := store.profiles["p1"].Caption; got != "new caption" {
		t.Fatalf("expected caption to be updated, got %q", got)
	}
	if got := store.profiles["p1"].FirstName; got != "" {
		t.Fatalf("expected untouched fields to stay, got first name %q", got)
	}
}

func TestProfileHandlerFetchMissing(t *testing.T) {
	handler := ProfileHandler{Profiles: newInMemoryProfileStore()}

	req := authedRequest(http.MethodGet, "/api/v1/profiles/nope", nil, models.User{ID: "user-1"})
	rec := httptest.NewRecorder()
	handler.Item(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}
