package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"fitlink/internal/auth"
	"fitlink/internal/domain"
)

// protectedApp levanta una ruta protegida que devuelve el uid de los claims.
func protectedApp(jwtSvc *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", JWTAuthMiddleware(jwtSvc), func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claims missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": claims.UserID})
	})
	return r
}

func callWhoami(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error
}

func TestJWTAuthMiddleware_PassesClaimsThrough(t *testing.T) {
	jwtSvc := auth.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, auth.NewMemoryRefreshTokenStore())
	pair, err := jwtSvc.GeneratePair(domain.User{ID: "u1", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	rec := callWhoami(protectedApp(jwtSvc), "Bearer "+pair.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		UID string `json:"uid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.UID != "u1" {
		t.Fatalf("expected uid u1, got %q", body.UID)
	}
}

func TestJWTAuthMiddleware_RejectsBadAuthorization(t *testing.T) {
	jwtSvc := auth.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, auth.NewMemoryRefreshTokenStore())
	pair, err := jwtSvc.GeneratePair(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	r := protectedApp(jwtSvc)

	cases := []struct {
		name          string
		authorization string
		wantError     string
	}{
		{name: "no header", authorization: "", wantError: "missing token"},
		{name: "wrong scheme", authorization: "Token " + pair.AccessToken, wantError: "missing token"},
		{name: "empty token", authorization: "Bearer ", wantError: "missing token"},
		{name: "garbage token", authorization: "Bearer not-a-jwt", wantError: "invalid token"},
		// Un refresh token no sirve como access token.
		{name: "refresh as access", authorization: "Bearer " + pair.RefreshToken, wantError: "invalid token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := callWhoami(r, tc.authorization)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if got := errorBody(t, rec); got != tc.wantError {
				t.Fatalf("expected error %q, got %q", tc.wantError, got)
			}
		})
	}
}

func TestJWTAuthMiddleware_DistinguishesExpiredToken(t *testing.T) {
	// TTL negativo: el access token nace vencido.
	jwtSvc := auth.NewJWTServiceWithStore("secret", -time.Minute, time.Hour, auth.NewMemoryRefreshTokenStore())
	pair, err := jwtSvc.GeneratePair(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	rec := callWhoami(protectedApp(jwtSvc), "Bearer "+pair.AccessToken)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := errorBody(t, rec); got != "token expired" {
		t.Fatalf("expected %q, got %q", "token expired", got)
	}
}
