// Пакет linkissuer — выдача временных ссылок на чтение объектов хранилища
// (presigned GET URL, AWS Signature V4).
//
// Issuer не хранит состояния и не обращается ни к кэшу, ни к БД:
// подпись строится из ключа, срока действия и учётных данных клиента.
// Повторный вызов для того же ключа даёт другой URL (в подпись входит
// момент выдачи), поэтому стабильность обеспечивает кэширование результата.
package linkissuer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
)

// Пределы срока действия presigned URL в S3.
const (
	MinTTL = time.Second
	MaxTTL = 7 * 24 * time.Hour
)

// amzDateLayout — формат X-Amz-Date (ISO 8601 basic, UTC).
const amzDateLayout = "20060102T150405Z"

// ErrInvalidTTL — срок действия вне допустимого диапазона.
var ErrInvalidTTL = errors.New("недопустимый срок действия ссылки")

var linksIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cs_links_issued_total",
	Help: "Количество выданных временных ссылок.",
})

// Issuer выдаёт ссылки на чтение объектов одного бакета.
type Issuer struct {
	client *minio.Client
	bucket string
}

// New создаёт Issuer. Клиент должен быть создан с явным Region,
// иначе подпись потребует сетевого запроса расположения бакета.
func New(client *minio.Client, bucket string) *Issuer {
	return &Issuer{
		client: client,
		bucket: bucket,
	}
}

// Issue подписывает GET-запрос к ключу key со сроком действия ttl.
// ttl задаётся целым числом секунд: X-Amz-Expires дробных значений не допускает.
// ExpiresAt берётся из самой подписи (X-Amz-Date + X-Amz-Expires).
func (i *Issuer) Issue(ctx context.Context, key string, ttl time.Duration) (*model.AccessLink, error) {
	if ttl < MinTTL || ttl > MaxTTL || ttl%time.Second != 0 {
		return nil, fmt.Errorf("%w: %s (допустимо целое число секунд %s-%s)", ErrInvalidTTL, ttl, MinTTL, MaxTTL)
	}
	if key == "" {
		return nil, errors.New("пустой ключ объекта")
	}

	u, err := i.client.PresignedGetObject(ctx, i.bucket, key, ttl, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи ссылки на %s: %w", key, err)
	}

	expiresAt, err := signedExpiry(u.Query())
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора подписи ссылки на %s: %w", key, err)
	}

	linksIssuedTotal.Inc()

	return &model.AccessLink{
		URL:       u.String(),
		Key:       key,
		ExpiresAt: expiresAt,
	}, nil
}

// signedExpiry вычисляет момент, после которого хранилище отвергнет ссылку.
// X-Amz-Date усечён до секунды, поэтому момент может быть раньше now+ttl.
func signedExpiry(q url.Values) (time.Time, error) {
	signedAt, err := time.Parse(amzDateLayout, q.Get("X-Amz-Date"))
	if err != nil {
		return time.Time{}, fmt.Errorf("X-Amz-Date: %w", err)
	}
	seconds, err := strconv.ParseInt(q.Get("X-Amz-Expires"), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("X-Amz-Expires: %w", err)
	}
	return signedAt.Add(time.Duration(seconds) * time.Second), nil
}
