package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/volkrin/catalog-service/internal/api/middleware"
	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
	"github.com/bigkaa/volkrin/catalog-service/internal/service"
)

// mockCatalog — мок сервиса каталога.
type mockCatalog struct {
	uploadFn func(ctx context.Context, p service.UploadParams) (*model.Track, error)
	deleteFn func(ctx context.Context, id string) error
	listFn   func(ctx context.Context) ([]*model.Track, error)
	linkFn   func(ctx context.Context, id string) (*model.AccessLink, error)
}

func (m *mockCatalog) UploadItem(ctx context.Context, p service.UploadParams) (*model.Track, error) {
	return m.uploadFn(ctx, p)
}

func (m *mockCatalog) DeleteItem(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockCatalog) ListItems(ctx context.Context) ([]*model.Track, error) {
	return m.listFn(ctx)
}

func (m *mockCatalog) GetItemLink(ctx context.Context, id string) (*model.AccessLink, error) {
	return m.linkFn(ctx, id)
}

// testTrackID — валидный UUID трека.
const testTrackID = "3f1c2a9e-8d4b-4c6f-9a2e-5b7d1e0c4f88"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRouter собирает маршруты так же, как сервер, но без JWT.
func newRouter(h *TracksHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/tracks", h.List)
	r.Get("/api/v1/tracks/{id}/stream", h.Stream)
	r.Post("/api/v1/tracks/upload", h.Upload)
	r.Post("/api/v1/tracks/mock-upload", h.MockUpload)
	r.Delete("/api/v1/tracks/{id}", h.Delete)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("не удалось разобрать ошибку: %v (%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

// filePart — файл multipart-формы.
type filePart struct {
	field, filename, contentType string
	data                         []byte
}

// multipartBody собирает тело multipart-запроса.
func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

func TestList(t *testing.T) {
	artist := "Nina"
	h := NewTracksHandler(&mockCatalog{
		listFn: func(context.Context) ([]*model.Track, error) {
			return []*model.Track{{ID: "t1", Title: "Song", Artist: &artist}}, nil
		},
	}, 1<<20, true, testLogger())

	rec := serve(newRouter(h), httptest.NewRequest(http.MethodGet, "/api/v1/tracks", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	var got []model.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "t1" || *got[0].Artist != "Nina" {
		t.Errorf("ответ = %+v", got)
	}
}

// TestList_Empty проверяет, что пустой каталог отдаётся как [], а не null.
func TestList_Empty(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{
		listFn: func(context.Context) ([]*model.Track, error) { return nil, nil },
	}, 1<<20, true, testLogger())

	rec := serve(newRouter(h), httptest.NewRequest(http.MethodGet, "/api/v1/tracks", http.NoBody))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("тело = %q, ожидался []", rec.Body.String())
	}
}

// TestServiceErrorMapping проверяет трансляцию видов ошибок в HTTP.
func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: пусто", service.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"storage", fmt.Errorf("%w: put: boom", service.ErrStorage), http.StatusBadGateway, "STORAGE_UNAVAILABLE"},
		{"persistence", fmt.Errorf("%w: insert: boom", service.ErrPersistence), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTracksHandler(&mockCatalog{
				linkFn: func(context.Context, string) (*model.AccessLink, error) { return nil, tt.err },
			}, 1<<20, true, testLogger())

			rec := serve(newRouter(h), httptest.NewRequest(http.MethodGet, "/api/v1/tracks/"+testTrackID+"/stream", http.NoBody))
			if rec.Code != tt.status {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.status)
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, ожидался %q", code, tt.code)
			}
		})
	}
}

func TestStream(t *testing.T) {
	expires := time.Date(2026, 10, 15, 12, 5, 0, 0, time.UTC)
	var gotID string
	h := NewTracksHandler(&mockCatalog{
		linkFn: func(_ context.Context, id string) (*model.AccessLink, error) {
			gotID = id
			return &model.AccessLink{URL: "https://s3/signed", Key: "audio/x.mp3", ExpiresAt: expires}, nil
		},
	}, 1<<20, true, testLogger())

	rec := serve(newRouter(h), httptest.NewRequest(http.MethodGet, "/api/v1/tracks/"+testTrackID+"/stream", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if gotID != testTrackID {
		t.Errorf("id = %q, ожидался %s", gotID, testTrackID)
	}

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["url"] != "https://s3/signed" || body["expires_at"] != "2026-10-15T12:05:00Z" {
		t.Errorf("тело = %v", body)
	}
	if _, ok := body["key"]; ok {
		t.Error("ключ объекта не должен отдаваться клиенту")
	}
}

func TestUpload(t *testing.T) {
	var got service.UploadParams
	h := NewTracksHandler(&mockCatalog{
		uploadFn: func(_ context.Context, p service.UploadParams) (*model.Track, error) {
			got = p
			return &model.Track{ID: "new-id", Title: p.Title}, nil
		},
	}, 1<<20, true, testLogger())

	body, ct := multipartBody(t,
		map[string]string{"title": "Song", "artist": "Nina"},
		filePart{"file", "my song.mp3", "audio/mpeg", []byte("ID3")},
		filePart{"thumbnail", "cover.jpg", "image/jpeg", []byte{0xff, 0xd8}},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracks/upload", body)
	req.Header.Set("Content-Type", ct)
	claims := &middleware.AuthClaims{Subject: "user-1", Name: "alice", Email: "a@x", EffectiveRole: middleware.RoleAdmin}
	req = req.WithContext(context.WithValue(req.Context(), middleware.ContextKeyClaims, claims))

	rec := serve(newRouter(h), req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d: %s", rec.Code, rec.Body.String())
	}

	if got.Title != "Song" || got.Artist != "Nina" {
		t.Errorf("title/artist = %q/%q", got.Title, got.Artist)
	}
	if got.Audio.Filename != "my song.mp3" || got.Audio.ContentType != "audio/mpeg" || string(got.Audio.Data) != "ID3" {
		t.Errorf("audio = %+v", got.Audio)
	}
	if got.Thumbnail.Filename != "cover.jpg" || len(got.Thumbnail.Data) != 2 {
		t.Errorf("thumbnail = %+v", got.Thumbnail)
	}
	if got.Uploader == nil || got.Uploader.ID != "user-1" || got.Uploader.Role != "admin" {
		t.Errorf("uploader = %+v", got.Uploader)
	}

	var resp struct {
		Track model.Track `json:"track"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Track.ID != "new-id" {
		t.Errorf("track = %+v", resp.Track)
	}
}

// TestUpload_MissingFile проверяет, что отсутствующее поле передаётся
// сервису пустым и его ошибка валидации становится 400.
func TestUpload_MissingFile(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{
		uploadFn: func(_ context.Context, p service.UploadParams) (*model.Track, error) {
			if len(p.Thumbnail.Data) != 0 {
				t.Errorf("thumbnail = %+v, ожидался пустой", p.Thumbnail)
			}
			return nil, fmt.Errorf("%w: обложка обязательна", service.ErrValidation)
		},
	}, 1<<20, true, testLogger())

	body, ct := multipartBody(t, map[string]string{"title": "Song"},
		filePart{"file", "a.mp3", "audio/mpeg", []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracks/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := serve(newRouter(h), req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", rec.Code)
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{
		uploadFn: func(context.Context, service.UploadParams) (*model.Track, error) {
			t.Error("сервис не должен вызываться")
			return nil, nil
		},
	}, 1<<20, true, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracks/upload", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newRouter(h), req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", rec.Code)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{
		uploadFn: func(context.Context, service.UploadParams) (*model.Track, error) {
			t.Error("сервис не должен вызываться")
			return nil, nil
		},
	}, 1024, true, testLogger())

	body, ct := multipartBody(t, map[string]string{"title": "Song"},
		filePart{"file", "a.mp3", "audio/mpeg", bytes.Repeat([]byte("a"), 64*1024)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracks/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := serve(newRouter(h), req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("статус = %d, ожидался 413", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	var gotID string
	h := NewTracksHandler(&mockCatalog{
		deleteFn: func(_ context.Context, id string) error {
			gotID = id
			return nil
		},
	}, 1<<20, true, testLogger())

	rec := serve(newRouter(h), httptest.NewRequest(http.MethodDelete, "/api/v1/tracks/"+testTrackID, http.NoBody))
	if rec.Code != http.StatusOK || gotID != testTrackID {
		t.Errorf("статус = %d, id = %q", rec.Code, gotID)
	}
}

func TestDelete_NotFound(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{
		deleteFn: func(context.Context, string) error {
			return fmt.Errorf("%w: t-7", service.ErrNotFound)
		},
	}, 1<<20, true, testLogger())

	rec := serve(newRouter(h), httptest.NewRequest(http.MethodDelete, "/api/v1/tracks/"+testTrackID, http.NoBody))
	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидался 404", rec.Code)
	}
}

// TestInvalidTrackID проверяет, что id не в формате UUID — 404 без вызова сервиса.
func TestInvalidTrackID(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{
		deleteFn: func(context.Context, string) error {
			t.Error("сервис не должен вызываться")
			return nil
		},
		linkFn: func(context.Context, string) (*model.AccessLink, error) {
			t.Error("сервис не должен вызываться")
			return nil, nil
		},
	}, 1<<20, true, testLogger())

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodDelete, "/api/v1/tracks/not-a-uuid", http.NoBody),
		httptest.NewRequest(http.MethodGet, "/api/v1/tracks/not-a-uuid/stream", http.NoBody),
	} {
		rec := serve(newRouter(h), req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: статус = %d, ожидался 404", req.Method, req.URL.Path, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != "NOT_FOUND" {
			t.Errorf("code = %q, ожидался NOT_FOUND", code)
		}
	}
}

// TestMockUpload проверяет фиктивную загрузку без обращения к сервису.
func TestMockUpload(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{}, 1<<20, true, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracks/mock-upload",
		strings.NewReader(`{"title":"My Song","artist":"Nina"}`))
	rec := serve(newRouter(h), req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Track model.Track `json:"track"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Track.Title != "My Song" || resp.Track.AudioURL != "/fake/MySong.mp3" {
		t.Errorf("track = %+v", resp.Track)
	}
	if resp.Track.ID == "" {
		t.Error("пустой id")
	}
}

func TestMockUpload_Validation(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{}, 1<<20, true, testLogger())

	for _, body := range []string{`{"title":"x"}`, `{"artist":"y"}`, `not json`} {
		rec := serve(newRouter(h), httptest.NewRequest(http.MethodPost, "/api/v1/tracks/mock-upload", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("тело %q: статус = %d, ожидался 400", body, rec.Code)
		}
	}
}

func TestMockUpload_DisabledInProduction(t *testing.T) {
	h := NewTracksHandler(&mockCatalog{}, 1<<20, false, testLogger())

	rec := serve(newRouter(h), httptest.NewRequest(http.MethodPost, "/api/v1/tracks/mock-upload",
		strings.NewReader(`{"title":"x","artist":"y"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус = %d, ожидался 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
		t.Errorf("code = %s, ожидался VALIDATION_ERROR", code)
	}
}
