package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/response"
)

func newRouter(cfg *config.Config, roles ...identity.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdentityMiddleware(cfg, zap.NewNop().Sugar()))
	r.GET("/whoami", RequireRole(roles...), func(c *gin.Context) {
		id, _ := Caller(c)
		c.JSON(http.StatusOK, response.OKT(id))
	})
	return r
}

func call(t *testing.T, r *gin.Engine, req *http.Request) response.APIResponse[json.RawMessage] {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp response.APIResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestIdentity_BearerToken(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "s3cret", Issuer: "autoinspect"}}
	token, err := identity.NewVerifier("s3cret", "autoinspect").Sign(identity.Identity{UserID: "tech-1", Role: identity.RoleTechnician}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := call(t, newRouter(cfg), req)
	require.Equal(t, response.APIResponseCodeOK, resp.Code)

	var id identity.Identity
	require.NoError(t, json.Unmarshal(resp.Data, &id))
	assert.Equal(t, identity.Identity{UserID: "tech-1", Role: identity.RoleTechnician}, id)

	req = httptest.NewRequest(http.MethodGet, "/whoami?access_token="+token, nil)
	assert.Equal(t, response.APIResponseCodeOK, call(t, newRouter(cfg), req).Code)
}

func TestIdentity_RejectsBadToken(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "s3cret"}}
	token, err := identity.NewVerifier("other", "").Sign(identity.Identity{UserID: "u", Role: identity.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, response.APIResponseCodeUnauthorized, call(t, newRouter(cfg), req).Code)
}

func TestIdentity_TrustedHeaders(t *testing.T) {
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		r.Header.Set(HeaderUserID, "cust-1")
		r.Header.Set(HeaderUserRole, "customer")
		return r
	}

	untrusted := &config.Config{}
	assert.Equal(t, response.APIResponseCodeUnauthorized, call(t, newRouter(untrusted), req()).Code)

	trusted := &config.Config{Auth: config.AuthConfig{TrustHeaders: true}}
	assert.Equal(t, response.APIResponseCodeOK, call(t, newRouter(trusted), req()).Code)

	bad := req()
	bad.Header.Set(HeaderUserRole, "root")
	assert.Equal(t, response.APIResponseCodeUnauthorized, call(t, newRouter(trusted), bad).Code)
}

func TestRequireRole(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{TrustHeaders: true}}
	r := newRouter(cfg, identity.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "cust-1")
	req.Header.Set(HeaderUserRole, "customer")
	assert.Equal(t, response.APIResponseCodeForbidden, call(t, r, req).Code)

	req.Header.Set(HeaderUserRole, "admin")
	assert.Equal(t, response.APIResponseCodeOK, call(t, r, req).Code)
}
