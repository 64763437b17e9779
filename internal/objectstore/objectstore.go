// Пакет objectstore — адаптер объектного хранилища (S3-совместимого) на minio-go.
// Хранит аудиофайлы и обложки треков по ключу. Локальной буферизации нет:
// каждая операция — прямой вызов хранилища.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Ошибки объектного хранилища.
var (
	// ErrNotExist — объект или бакет не найден.
	ErrNotExist = errors.New("объект не найден")
	// ErrPermission — доступ запрещён.
	ErrPermission = errors.New("доступ к объекту запрещён")
)

// ClientConfig — параметры подключения к хранилищу.
type ClientConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	// Region задаётся явно, чтобы подпись ссылок не требовала запроса
	// расположения бакета.
	Region string
	UseSSL bool
}

// NewClient создаёт клиента minio. Сетевых запросов не выполняет.
func NewClient(cfg ClientConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента объектного хранилища: %w", err)
	}
	return client, nil
}

// Adapter — операции put/delete над одним бакетом.
type Adapter struct {
	client     *minio.Client
	bucket     string
	publicBase string
	logger     *slog.Logger
}

// NewAdapter создаёт адаптер бакета bucket.
// publicBase — базовый адрес, из которого строятся публичные ссылки на объекты.
func NewAdapter(client *minio.Client, bucket, publicBase string, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		logger:     logger.With(slog.String("component", "objectstore")),
	}
}

// Put записывает payload под ключом key.
func (a *Adapter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, a.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("ошибка записи объекта %s: %w", key, translate(err))
	}

	a.logger.Debug("Объект записан",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)
	return nil
}

// Delete удаляет объект. Удаление отсутствующего объекта — не ошибка.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, translate(err))
	}
	return nil
}

// PublicURL возвращает публичный адрес объекта: <publicBase>/<key>.
// Сегменты ключа экранируются.
func (a *Adapter) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return a.publicBase + "/" + strings.Join(segments, "/")
}

// EnsureBucket создаёт бакет, если его нет.
func (a *Adapter) EnsureBucket(ctx context.Context, region string) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("ошибка проверки бакета %s: %w", a.bucket, translate(err))
	}
	if exists {
		return nil
	}

	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// Бакет мог создать другой экземпляр сервиса
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("ошибка создания бакета %s: %w", a.bucket, translate(err))
	}

	a.logger.Info("Бакет создан", slog.String("bucket", a.bucket))
	return nil
}

// Bucket возвращает имя бакета.
func (a *Adapter) Bucket() string {
	return a.bucket
}

// translate приводит ошибки minio к ошибкам пакета.
func translate(err error) error {
	if err == nil {
		return nil
	}

	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %w", ErrNotExist, err)
	case "AccessDenied":
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}
	return fmt.Errorf("minio: %w", err)
}
