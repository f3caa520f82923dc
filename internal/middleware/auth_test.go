package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/models"
	"github.com/chatapi/backend/internal/repositories"
)

type stubUserResolver struct {
	users map[string]models.User
}

func (s *stubUserResolver) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type stubPresence struct {
	mu      sync.Mutex
	touched []string
}

func (s *stubPresence) Touch(userID string) {
	s.mu.Lock()
	s.touched = append(s.touched, userID)
	s.mu.Unlock()
}

func newGateFixture(t *testing.T) (*auth.Service, *stubUserResolver, *stubPresence, func(http.Handler) http.Handler) {
	t.Helper()

	codec, err := auth.NewCodec("gate-test-secret")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	service := auth.NewService(codec, auth.NewInMemorySecretStore(), time.Minute, time.Hour, 10)
	users := &stubUserResolver{users: map[string]models.User{
		"user-1": {ID: "user-1", Username: "alice"},
	}}
	presence := &stubPresence{}

	return service, users, presence, Authenticate(service, users, presence)
}

func identityEcho(t *testing.T, captured *models.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := auth.UserFromContext(r.Context()); ok {
			*captured = user
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateResolvesUser(t *testing.T) {
	service, _, presence, gate := newGateFixture(t)

	pair, err := service.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen models.User
	handler := gate(identityEcho(t, &seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen.ID != "user-1" || seen.Username != "alice" {
		t.Fatalf("expected resolved user, got %+v", seen)
	}
	if len(presence.touched) != 1 || presence.touched[0] != "user-1" {
		t.Fatalf("expected presence touch for user-1, got %v", presence.touched)
	}
}

func TestAuthenticateMissingHeaderIsAnonymous(t *testing.T) {
	_, _, presence, gate := newGateFixture(t)

	var seen models.User
	handler := gate(identityEcho(t, &seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous request should pass through, got %d", rec.Code)
	}
	if seen.ID != "" {
		t.Fatalf("expected no identity, got %+v", seen)
	}
	if len(presence.touched) != 0 {
		t.Fatalf("expected no presence touches, got %v", presence.touched)
	}
}

func TestAuthenticateBadTokenIsAnonymous(t *testing.T) {
	_, _, _, gate := newGateFixture(t)

	var seen models.User
	handler := gate(identityEcho(t, &seen))

	for _, header := range []string{"Bearer garbage", "Basic abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("header %q: expected pass-through, got %d", header, rec.Code)
		}
		if seen.ID != "" {
			t.Fatalf("header %q: expected no identity, got %+v", header, seen)
		}
	}
}

func TestAuthenticateUnknownSubjectIsAnonymous(t *testing.T) {
	service, _, presence, gate := newGateFixture(t)

	pair, err := service.Issue(context.Background(), "user-gone")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen models.User
	handler := gate(identityEcho(t, &seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen.ID != "" {
		t.Fatalf("expected no identity for unknown subject, got %+v", seen)
	}
	if len(presence.touched) != 0 {
		t.Fatalf("expected no presence touches, got %v", presence.touched)
	}
}

func TestRequireUser(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireUser(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous request, got %d", rec.Code)
	}

	ctx := auth.WithUser(context.Background(), models.User{ID: "user-1"})
	req = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through for authenticated request, got %d", rec.Code)
	}
}

func TestRequireUserUnlessSafe(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireUserUnlessSafe(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected anonymous GET to pass, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous POST, got %d", rec.Code)
	}

	ctx := auth.WithUser(context.Background(), models.User{ID: "user-1"})
	req = httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected authenticated POST to pass, got %d", rec.Code)
	}
}
