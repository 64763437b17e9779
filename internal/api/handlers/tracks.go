// tracks.go — обработчики чтения и мутаций каталога.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/volkrin/catalog-service/internal/api/errors"
	"github.com/bigkaa/volkrin/catalog-service/internal/api/middleware"
	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
	"github.com/bigkaa/volkrin/catalog-service/internal/service"
)

// multipartMemory — объём multipart-формы в памяти, остальное во временных файлах.
const multipartMemory = 32 << 20

// streamResponse — ответ GET /api/v1/tracks/{id}/stream.
type streamResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// uploadResponse — ответ загрузки трека.
type uploadResponse struct {
	Message string       `json:"message"`
	Track   *model.Track `json:"track"`
}

// List — GET /api/v1/tracks.
func (h *TracksHandler) List(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.catalog.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list", trackNotFound, err)
		return
	}
	if tracks == nil {
		tracks = []*model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// Stream — GET /api/v1/tracks/{id}/stream. Выдаёт временную ссылку на аудио.
func (h *TracksHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		apierrors.NotFound(w, trackNotFound)
		return
	}

	link, err := h.catalog.GetItemLink(r.Context(), id.String())
	if err != nil {
		writeServiceError(w, h.logger, "stream", trackNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, streamResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
}

// Upload — POST /api/v1/tracks/upload.
// Multipart form: title (обязательно), artist, file (аудио), thumbnail (обложка).
// Авторизация: JWT с ролью admin, на уровне middleware.
func (h *TracksHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер запроса превышает %d байт", tooLarge.Limit))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	audio, err := readFormFile(r, "file")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	thumbnail, err := readFormFile(r, "thumbnail")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	params := service.UploadParams{
		Title:     r.FormValue("title"),
		Artist:    r.FormValue("artist"),
		Audio:     audio,
		Thumbnail: thumbnail,
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		params.Uploader = claims.Uploader()
	}

	track, err := h.catalog.UploadItem(r.Context(), params)
	if err != nil {
		writeServiceError(w, h.logger, "upload", trackNotFound, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Message: "Трек загружен",
		Track:   track,
	})
}

// readFormFile читает файл формы целиком.
// Отсутствующее поле даёт пустой Payload: обязательность проверяет сервис.
func readFormFile(r *http.Request, field string) (service.Payload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return service.Payload{}, nil
	}
	if err != nil {
		return service.Payload{}, fmt.Errorf("поле '%s': %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.Payload{}, fmt.Errorf("чтение поля '%s': %w", field, err)
	}

	return service.Payload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Delete — DELETE /api/v1/tracks/{id}.
// Авторизация: JWT с ролью admin, на уровне middleware.
func (h *TracksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		apierrors.NotFound(w, trackNotFound)
		return
	}

	if err := h.catalog.DeleteItem(r.Context(), id.String()); err != nil {
		writeServiceError(w, h.logger, "delete", trackNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Трек удалён"})
}

// mockUploadRequest — тело POST /api/v1/tracks/mock-upload.
type mockUploadRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// MockUpload — POST /api/v1/tracks/mock-upload.
// Возвращает фиктивную запись без обращения к хранилищам.
// В production маршрут существует, но отвечает 400.
func (h *TracksHandler) MockUpload(w http.ResponseWriter, r *http.Request) {
	if !h.mockEnabled {
		apierrors.ValidationError(w, "Тестовая загрузка отключена в production")
		return
	}

	var req mockUploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	title := strings.TrimSpace(req.Title)
	artist := strings.TrimSpace(req.Artist)
	if title == "" || artist == "" {
		apierrors.ValidationError(w, "Поля title и artist обязательны")
		return
	}

	name := whitespaceRun.ReplaceAllString(title, "")
	mockUploader := "mock-user"
	now := time.Now().UTC()
	track := &model.Track{
		ID:           uuid.New().String(),
		Title:        title,
		Artist:       &artist,
		AudioKey:     "mock/" + name + ".mp3",
		ThumbnailKey: "mock/thumb.jpg",
		AudioURL:     "/fake/" + name + ".mp3",
		ThumbnailURL: "/fake/thumb.jpg",
		UploaderID:   &mockUploader,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Message: "Трек загружен (mock)",
		Track:   track,
	})
}
