package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func init() {
	gin.SetMode(gin.TestMode)
}

func engineConAuth(secret string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/privado", JWTAuth(secret), func(c *gin.Context) {
		sub := ""
		if cl := GetClaims(c); cl != nil {
			sub = cl.Subject
		}
		c.String(http.StatusOK, sub)
	})
	return r
}

func firmar(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/privado", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func claimsValidos() SessionClaims {
	return SessionClaims{
		Email: "vendedor@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "5f1d7c1e-0000-4000-8000-000000000001",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWTAuth_TokenValido(t *testing.T) {
	r := engineConAuth(testSecret)
	w := get(r, firmar(t, jwt.SigningMethodHS256, []byte(testSecret), claimsValidos()))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5f1d7c1e-0000-4000-8000-000000000001", w.Body.String())
}

func TestJWTAuth_Rechazos(t *testing.T) {
	r := engineConAuth(testSecret)

	expirado := claimsValidos()
	expirado.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	sinSub := claimsValidos()
	sinSub.Subject = ""
	sinExp := claimsValidos()
	sinExp.ExpiresAt = nil

	cases := map[string]string{
		"sin token":      "",
		"basura":         "no.es.jwt",
		"otra clave":     firmar(t, jwt.SigningMethodHS256, []byte("otra-clave-otra-clave-otra-clave-xx"), claimsValidos()),
		"HS512":          firmar(t, jwt.SigningMethodHS512, []byte(testSecret), claimsValidos()),
		"expirado":       firmar(t, jwt.SigningMethodHS256, []byte(testSecret), expirado),
		"sin subject":    firmar(t, jwt.SigningMethodHS256, []byte(testSecret), sinSub),
		"sin expiracion": firmar(t, jwt.SigningMethodHS256, []byte(testSecret), sinExp),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(r, tok).Code)
		})
	}
}

func TestJWTAuth_DeshabilitadoSinSecreto(t *testing.T) {
	w := get(engineConAuth(""), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := engineConAuth("")

	w := get(r, "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/privado", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(2, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestLimitador_Purga(t *testing.T) {
	l := &limitador{limit: 1, window: time.Second, entries: map[string]*ventana{}}
	now := time.Now()
	ok, _ := l.permitir("1.1.1.1", now)
	assert.True(t, ok)
	ok, _ = l.permitir("1.1.1.1", now)
	assert.False(t, ok)

	assert.Equal(t, 1, l.purgar(now.Add(2*time.Second)))
	ok, _ = l.permitir("1.1.1.1", now.Add(2*time.Second))
	assert.True(t, ok)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Error interno del servidor","codigo":"interno"}`, w.Body.String())
}

func TestCORS_Allowlist(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://app.factumovil.pe, http://localhost:5173"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
