// handler.go — обработчики HTTP API каталога треков и пользователей.
// Транслируют результаты сервисного слоя в HTTP-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/volkrin/catalog-service/internal/api/errors"
	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
	"github.com/bigkaa/volkrin/catalog-service/internal/service"
)

// Catalog — операции каталога, доступные через HTTP.
type Catalog interface {
	UploadItem(ctx context.Context, p service.UploadParams) (*model.Track, error)
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context) ([]*model.Track, error)
	GetItemLink(ctx context.Context, id string) (*model.AccessLink, error)
}

// TracksHandler — обработчик /api/v1/tracks.
type TracksHandler struct {
	catalog       Catalog
	maxUploadSize int64
	mockEnabled   bool
	logger        *slog.Logger
}

// NewTracksHandler создаёт обработчик треков.
// maxUploadSize — лимит тела multipart-запроса (CS_MAX_UPLOAD_SIZE).
// mockEnabled — разрешена ли тестовая загрузка (вне production).
func NewTracksHandler(catalog Catalog, maxUploadSize int64, mockEnabled bool, logger *slog.Logger) *TracksHandler {
	return &TracksHandler{
		catalog:       catalog,
		maxUploadSize: maxUploadSize,
		mockEnabled:   mockEnabled,
		logger:        logger.With(slog.String("component", "tracks_handler")),
	}
}

// messageResponse — ответ с текстовым сообщением.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Сообщения для ErrNotFound по видам ресурсов.
const (
	trackNotFound = "Трек не найден"
	userNotFound  = "Пользователь не найден"
)

// writeServiceError транслирует вид ошибки сервиса в HTTP-ответ.
// Детали ошибок хранилищ наружу не отдаются, только в лог.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op, notFound string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, notFound)
	case errors.Is(err, service.ErrStorage):
		logger.Error("Ошибка объектного хранилища",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		apierrors.StorageUnavailable(w, "Объектное хранилище недоступно")
	default:
		logger.Error("Внутренняя ошибка",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// pathUUID разбирает UUID из параметра пути. Невалидное значение —
// несуществующий ресурс.
func pathUUID(r *http.Request, name string) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	if err := id.UnmarshalText([]byte(chi.URLParam(r, name))); err != nil {
		return id, false
	}
	return id, true
}
