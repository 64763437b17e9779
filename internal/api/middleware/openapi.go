// openapi.go — проверка входящих запросов по OpenAPI-контракту (kin-openapi).
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"

	apierrors "github.com/bigkaa/volkrin/catalog-service/internal/api/errors"
)

// OpenAPIValidator возвращает middleware, отклоняющий запросы, не соответствующие
// контракту, с кодом 400 VALIDATION_ERROR. Запросы к путям вне контракта
// пропускаются: 404/405 формирует chi. Аутентификацию выполняет JWT middleware,
// тело multipart проверяет обработчик.
func OpenAPIValidator(router routers.Router, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "openapi_validator"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					ExcludeRequestBody: isMultipart(r),
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				logger.Debug("Запрос не соответствует контракту",
					slog.String("operation", route.Operation.OperationID),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// validationMessage сокращает ошибку kin-openapi до поля и причины.
func validationMessage(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if field := strings.Join(schemaErr.JSONPointer(), "."); field != "" {
			return fmt.Sprintf("Поле '%s': %s", field, schemaErr.Reason)
		}
		return schemaErr.Reason
	}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Error()
	}
	return err.Error()
}
