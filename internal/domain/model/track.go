// Пакет model — доменные модели Catalog Service.
package model

import "time"

// Track — запись каталога (трек).
// Хранится в таблице tracks. Сериализуется в JSON как элемент
// снимка каталога в кэше (catalog:all) и в ответах API.
type Track struct {
	// ID — UUID записи (задаётся сервисом при загрузке)
	ID string `json:"id"`
	// Title — название трека, обязательное
	Title string `json:"title"`
	// Artist — исполнитель (опционально)
	Artist *string `json:"artist,omitempty"`
	// AudioKey — ключ аудиофайла в объектном хранилище
	AudioKey string `json:"audio_key"`
	// ThumbnailKey — ключ обложки в объектном хранилище
	ThumbnailKey string `json:"thumbnail_key"`
	// AudioURL — публичный адрес аудиофайла
	AudioURL string `json:"audio_url"`
	// ThumbnailURL — публичный адрес обложки
	ThumbnailURL string `json:"thumbnail_url"`
	// UploaderID — идентификатор загрузившего (sub из JWT, опционально)
	UploaderID *string `json:"uploader_id,omitempty"`
	// Uploader — публичная проекция загрузившего, заполняется только при чтении списка
	Uploader *Uploader `json:"uploader,omitempty"`
	// CreatedAt — время создания записи
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time `json:"updated_at"`
}

// Uploader — публичная проекция пользователя, загрузившего трек.
// Учётные данные пользователя сюда никогда не попадают.
type Uploader struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AccessLink — временная ссылка на чтение одного объекта хранилища.
// В БД не сохраняется, живёт только в кэше (catalog:link:<id>).
type AccessLink struct {
	// URL — подписанный адрес
	URL string `json:"url"`
	// Key — ключ объекта, к которому даёт доступ ссылка
	Key string `json:"key"`
	// ExpiresAt — момент истечения подписи
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired сообщает, истекла ли ссылка к моменту now.
func (l *AccessLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
