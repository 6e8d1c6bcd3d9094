package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"planlens/internal/jwt_token"
	id "planlens/pkg/domain"
	dErrors "planlens/pkg/domain-errors"
	"planlens/pkg/platform/httputil"
	"planlens/pkg/requestcontext"
)

// TokenValidator validates bearer tokens and returns their claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

const devTenantHeader = "X-Tenant-ID"

// RequireTenant resolves the caller's tenant and injects it into the request
// context. Resolution order:
//
//  1. Bearer token: the tenant_id claim of a validated JWT.
//  2. X-Tenant-ID header, only when devHeaderEnabled is set. This path
//     exists for local development and must stay off in production.
//
// Requests without a resolvable tenant are rejected with 401 before any
// handler runs.
func RequireTenant(validator TokenValidator, devHeaderEnabled bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					logger.WarnContext(ctx, "rejected request with invalid token",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					httputil.WriteError(w, err)
					return
				}
				tenantID, err := id.ParseTenantID(claims.TenantID)
				if err != nil {
					logger.WarnContext(ctx, "rejected token without usable tenant claim",
						"request_id", requestcontext.RequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token carries no valid tenant"))
					return
				}
				next.ServeHTTP(w, r.WithContext(requestcontext.WithTenantID(ctx, tenantID)))
				return
			}

			if devHeaderEnabled {
				if tenantID, err := id.ParseTenantID(r.Header.Get(devTenantHeader)); err == nil {
					next.ServeHTTP(w, r.WithContext(requestcontext.WithTenantID(ctx, tenantID)))
					return
				}
			}

			logger.WarnContext(ctx, "rejected request without credentials",
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
		})
	}
}
