package objectstore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupMinIOContainer запускает MinIO и возвращает endpoint.
func setupMinIOContainer(t *testing.T) string {
	t.Helper()

	if testing.Short() || os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	minioC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "не удалось запустить MinIO контейнер")
	t.Cleanup(func() {
		_ = minioC.Terminate(ctx)
	})

	endpoint, err := minioC.Endpoint(ctx, "")
	require.NoError(t, err, "не удалось получить endpoint контейнера")

	return endpoint
}

// TestAdapter_Integration проверяет put/delete на реальном MinIO.
func TestAdapter_Integration(t *testing.T) {
	endpoint := setupMinIOContainer(t)
	ctx := context.Background()

	client, err := NewClient(ClientConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	adapter := NewAdapter(client, "tracks", "http://"+endpoint+"/tracks",
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, adapter.EnsureBucket(ctx, "us-east-1"))
	// Повторный вызов — без ошибки
	require.NoError(t, adapter.EnsureBucket(ctx, "us-east-1"))

	t.Run("put and read back", func(t *testing.T) {
		key := "audio/test-song.mp3"
		require.NoError(t, adapter.Put(ctx, key, []byte("ID3-data"), "audio/mpeg"))

		obj, err := client.GetObject(ctx, "tracks", key, minio.GetObjectOptions{})
		require.NoError(t, err)
		defer obj.Close()

		data, err := io.ReadAll(obj)
		require.NoError(t, err)
		assert.Equal(t, "ID3-data", string(data))

		info, err := client.StatObject(ctx, "tracks", key, minio.StatObjectOptions{})
		require.NoError(t, err)
		assert.Equal(t, "audio/mpeg", info.ContentType)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		key := "thumbnails/test-cover.jpg"
		require.NoError(t, adapter.Put(ctx, key, []byte("jpeg"), ""))
		require.NoError(t, adapter.Delete(ctx, key))
		require.NoError(t, adapter.Delete(ctx, key))
		require.NoError(t, adapter.Delete(ctx, "never/existed"))

		_, err := client.StatObject(ctx, "tracks", key, minio.StatObjectOptions{})
		assert.Error(t, err)
	})

	t.Run("missing bucket", func(t *testing.T) {
		missing := NewAdapter(client, "no-such-bucket", "http://x", slog.New(slog.NewTextHandler(io.Discard, nil)))
		err := missing.Put(ctx, "k", []byte("v"), "")
		assert.ErrorIs(t, err, ErrNotExist)
	})

	t.Run("public url is not readable for private bucket", func(t *testing.T) {
		key := "audio/private.mp3"
		require.NoError(t, adapter.Put(ctx, key, []byte("secret"), "audio/mpeg"))

		httpClient := &http.Client{Timeout: 5 * time.Second}
		resp, err := httpClient.Get(adapter.PublicURL(key))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
