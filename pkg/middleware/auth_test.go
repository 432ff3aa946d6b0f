package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenFromRequestPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: "cookie"})
	require.Equal(t, "query", TokenFromRequest(r, "jwt"))

	r.Header.Set(AuthHeaderKey, "Bearer header")
	require.Equal(t, "header", TokenFromRequest(r, "jwt"))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: "cookie"})
	require.Equal(t, "cookie", TokenFromRequest(r, "jwt"))
	require.Empty(t, TokenFromRequest(r, ""))
}

func TestRequireAuth(t *testing.T) {
	manager, err := jwt.NewManager("secret", time.Hour, "chat")
	require.NoError(t, err)
	token, _, err := manager.GenerateToken("u1", "u1@example.com")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", NewAuthMiddleware(manager, "jwt").RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c)+"|"+GetEmail(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+"garbage")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1|u1@example.com", w.Body.String())
}
