// Пакет openapi — встроенный OpenAPI-контракт HTTP API каталога.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var spec []byte

// Spec возвращает исходный YAML контракта.
func Spec() []byte {
	return spec
}

// Load разбирает и валидирует встроенный контракт.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора OpenAPI-контракта: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("некорректный OpenAPI-контракт: %w", err)
	}
	return doc, nil
}

// NewRouter возвращает роутер kin-openapi для сопоставления запросов
// с операциями контракта.
func NewRouter(ctx context.Context) (routers.Router, error) {
	doc, err := Load(ctx)
	if err != nil {
		return nil, err
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения роутера OpenAPI: %w", err)
	}
	return router, nil
}
