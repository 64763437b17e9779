// auth.go — JWT middleware для аутентификации и авторизации Catalog Service.
// Валидирует подпись через JWKS, извлекает claims субъекта и его роль.
// Мутации каталога доступны только роли admin.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/volkrin/catalog-service/internal/api/errors"
	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// RoleAdmin — роль, которой разрешены загрузка и удаление треков.
const RoleAdmin = "admin"

// Параметры HTTP-клиента JWKS.
const (
	jwksClientTimeout   = 10 * time.Second
	jwksRefreshInterval = time.Hour
)

// AuthClaims — claims субъекта, помещаемые в контекст для handlers.
type AuthClaims struct {
	// Subject — sub из JWT.
	Subject string
	// Name — name или preferred_username.
	Name string
	// Email — email из JWT.
	Email string
	// Roles — роли из realm_access.roles.
	Roles []string
	// EffectiveRole — итоговая роль (admin или user).
	EffectiveRole string
}

// HasAnyRole проверяет, совпадает ли effective роль с одной из указанных.
func (c *AuthClaims) HasAnyRole(roles ...string) bool {
	return slices.Contains(roles, c.EffectiveRole)
}

// Uploader возвращает проекцию субъекта для сохранения вместе с треком.
func (c *AuthClaims) Uploader() *model.Uploader {
	return &model.Uploader{
		ID:    c.Subject,
		Name:  c.Name,
		Email: c.Email,
		Role:  c.EffectiveRole,
	}
}

// tokenClaims — raw claims из JWT для парсинга.
type tokenClaims struct {
	jwt.RegisteredClaims
	Name              string       `json:"name,omitempty"`
	PreferredUsername string       `json:"preferred_username,omitempty"`
	Email             string       `json:"email,omitempty"`
	Role              string       `json:"role,omitempty"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	logger    *slog.Logger
	issuer    string
	jwtLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с фоновым обновлением JWKS.
// issuer — ожидаемый issuer JWT (пустой — не проверяется).
// jwtLeeway — допустимое отклонение времени при проверке JWT (CS_JWT_LEEWAY).
func NewJWTAuth(jwksURL, issuer string, jwtLeeway time.Duration, logger *slog.Logger) (*JWTAuth, error) {
	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: jwksClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, issuer, jwtLeeway, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer string, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:      kf,
		logger:    logger.With(slog.String("component", "jwt_auth")),
		issuer:    issuer,
		jwtLeeway: jwtLeeway,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256) и помещает claims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			raw := &tokenClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, raw, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if raw.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, buildAuthClaims(raw))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildAuthClaims формирует AuthClaims из raw claims.
// Роль admin даёт либо claim role, либо realm_access.roles.
func buildAuthClaims(raw *tokenClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject: raw.Subject,
		Name:    raw.Name,
		Email:   raw.Email,
	}
	if claims.Name == "" {
		claims.Name = raw.PreferredUsername
	}
	if raw.RealmAccess != nil {
		claims.Roles = raw.RealmAccess.Roles
	}

	claims.EffectiveRole = "user"
	if raw.Role == RoleAdmin || slices.Contains(claims.Roles, RoleAdmin) {
		claims.EffectiveRole = RoleAdmin
	}
	return claims
}

// RequireRole возвращает middleware, требующий одну из указанных ролей.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
				return
			}

			if !claims.HasAnyRole(roles...) {
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(roles, " или ")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}
