// users.go — профиль текущего пользователя и администрирование пользователей.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/volkrin/catalog-service/internal/api/errors"
	"github.com/bigkaa/volkrin/catalog-service/internal/api/middleware"
	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
)

// Users — операции с пользователями, доступные через HTTP.
type Users interface {
	Me(ctx context.Context, subject *model.Uploader) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	DeleteUser(ctx context.Context, actorID, id string) error
}

// UsersHandler — обработчик /api/v1/auth/me и /api/v1/users.
type UsersHandler struct {
	users  Users
	logger *slog.Logger
}

// NewUsersHandler создаёт обработчик пользователей.
func NewUsersHandler(users Users, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  users,
		logger: logger.With(slog.String("component", "users_handler")),
	}
}

// userResponse — пользователь в ответах API.
type userResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Email     *openapi_types.Email `json:"email,omitempty"`
	Role      string               `json:"role"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Me — GET /api/v1/auth/me. Синхронизирует профиль из JWT и возвращает его.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	user, err := h.users.Me(r.Context(), claims.Uploader())
	if err != nil {
		writeServiceError(w, h.logger, "me", userNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

// List — GET /api/v1/users. Только admin.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list_users", userNotFound, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, mapUser(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete — DELETE /api/v1/users/{id}. Только admin, удалить себя нельзя.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	if err := h.users.DeleteUser(r.Context(), claims.Subject, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, "delete_user", userNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Пользователь удалён"})
}

// mapUser конвертирует доменную модель в ответ API.
// Email попадает в ответ, только если это корректный адрес.
func mapUser(u *model.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}

	if u.Email != "" {
		email := openapi_types.Email(u.Email)
		if _, err := email.MarshalJSON(); err == nil {
			resp.Email = &email
		}
	}

	return resp
}
