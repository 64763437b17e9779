package model

import "time"

// User — пользователь каталога. Профиль синхронизируется из claims JWT,
// учётные данные хранятся только в IdP.
type User struct {
	// ID — sub из JWT
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// Role — эффективная роль (admin, user) на момент последней синхронизации
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
