package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/response"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// IdentityMiddleware resolves the asserted caller from a bearer token, or from
// gateway headers when cfg.Auth.TrustHeaders is set. Browsers cannot set
// headers on websocket upgrades, so an access_token query parameter is also
// accepted. Requests without an identity pass through anonymous; routes that
// need one are wrapped in RequireRole.
func IdentityMiddleware(cfg *config.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	verifier := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}

		var (
			id  identity.Identity
			ok  bool
			err error
		)
		switch {
		case token != "":
			id, err = verifier.Verify(token)
			if err != nil {
				log.Debugw("rejected identity token", "err", err)
				c.AbortWithStatusJSON(http.StatusOK, response.ErrorT(response.APIResponseCodeUnauthorized, response.ErrorData{
					Reason: "unauthenticated",
					Detail: "invalid identity token",
				}))
				return
			}
			ok = true
		case cfg.Auth.TrustHeaders && c.GetHeader(HeaderUserID) != "":
			id = identity.Identity{UserID: c.GetHeader(HeaderUserID), Role: identity.Role(c.GetHeader(HeaderUserRole))}
			if !id.Role.Valid() {
				c.AbortWithStatusJSON(http.StatusOK, response.ErrorT(response.APIResponseCodeUnauthorized, response.ErrorData{
					Reason: "unauthenticated",
					Detail: "invalid role header",
				}))
				return
			}
			ok = true
		}

		if ok {
			c.Set("identity", id)
			c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		}
		c.Next()
	}
}

// RequireRole aborts unless the caller is authenticated and, when roles are
// given, holds one of them.
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity.FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorT(response.APIResponseCodeUnauthorized, response.ErrorData{
				Reason: "unauthenticated",
				Detail: "missing identity",
			}))
			return
		}
		if len(roles) == 0 {
			c.Next()
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusOK, response.ErrorT(response.APIResponseCodeForbidden, response.ErrorData{
			Reason: "forbidden",
			Detail: "role " + string(id.Role) + " may not call this endpoint",
		}))
	}
}

// Caller returns the identity resolved by IdentityMiddleware.
func Caller(c *gin.Context) (identity.Identity, bool) {
	return identity.FromContext(c.Request.Context())
}

func bearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
