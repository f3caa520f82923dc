package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingStorage struct {
	names   []string
	content []byte
	err     error
}

func (s *recordingStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.names = append(s.names, name)
	s.content = data
	return "https://cdn.example.com/" + name, nil
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, strings.NewReader(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadHandlerCreate(t *testing.T) {
	store := newInMemoryUploadStore()
	storage := &recordingStorage{}
	handler := UploadHandler{Uploads: store, Storage: storage}

	body, contentType := multipartUpload(t, "file_upload", "photo.PNG", "fake image bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected upload id in response")
	}
	if !strings.HasPrefix(resp.Location, "https://cdn.example.com/uploads/") {
		t.Fatalf("unexpected location %q", resp.Location)
	}

	if len(storage.names) != 1 {
		t.Fatalf("expected one stored object, got %d", len(storage.names))
	}
	if !strings.HasPrefix(storage.names[0], "uploads/") || !strings.HasSuffix(storage.names[0], ".png") {
		t.Fatalf("expected lowercased extension under uploads/, got %q", storage.names[0])
	}
	if string(storage.content) != "fake image bytes" {
		t.Fatalf("stored content mismatch: %q", storage.content)
	}

	stored, err := store.FindByID(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("expected upload record: %v", err)
	}
	if stored.Location != resp.Location {
		t.Fatalf("record location %q does not match response %q", stored.Location, resp.Location)
	}
}

func TestUploadHandlerMissingFile(t *testing.T) {
	handler := UploadHandler{Uploads: newInMemoryUploadStore(), Storage: &recordingStorage{}}

	body, contentType := multipartUpload(t, "wrong_field", "photo.png", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestUploadHandlerRateLimited(t *testing.T) {
	handler := UploadHandler{Uploads: newInMemoryUploadStore(), Storage: &recordingStorage{}, Limiter: denyAllLimiter{}}

	body, contentType := multipartUpload(t, "file_upload", "photo.png", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d got %d", http.StatusTooManyRequests, rec.Code)
	}
}
