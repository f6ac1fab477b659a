package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func invoke(t *testing.T, mw echo.MiddlewareFunc, path, authHeader string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return c, err
}

func TestMiddleware_ValidToken(t *testing.T) {
	signed := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"scheduler"},
	})

	c, err := invoke(t, Middleware(Config{Secret: testSecret}), "/api/v1/hl7/messages", "Bearer "+signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("expected subject user-1, got %q", got)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "scheduler" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	expired := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, _ := token.SignedString([]byte("other-secret"))
		return signed
	}()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
	}
	for _, tt := range tests {
		_, err := invoke(t, Middleware(Config{Secret: testSecret}), "/api/v1/hl7/messages", tt.header)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %v", tt.name, err)
		}
	}
}

func TestMiddleware_IssuerAndAudience(t *testing.T) {
	cfg := Config{Secret: testSecret, Issuer: "gateway", Audience: "scheduling"}

	good := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "gateway",
			Audience:  jwt.ClaimStrings{"scheduling"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := invoke(t, Middleware(cfg), "/api/v1/hl7/messages", "Bearer "+good); err != nil {
		t.Errorf("expected valid token to pass, got %v", err)
	}

	badIssuer := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			Audience:  jwt.ClaimStrings{"scheduling"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := invoke(t, Middleware(cfg), "/api/v1/hl7/messages", "Bearer "+badIssuer); err == nil {
		t.Error("expected wrong issuer to be rejected")
	}
}

func TestMiddleware_SkipsPublicPaths(t *testing.T) {
	for _, path := range []string{"/health", "/health/db", "/api/v1/hl7/status"} {
		if _, err := invoke(t, Middleware(Config{Secret: testSecret}), path, ""); err != nil {
			t.Errorf("%s: expected skip, got %v", path, err)
		}
	}
}

func TestDevMiddleware_Defaults(t *testing.T) {
	c, err := invoke(t, DevMiddleware(), "/api/v1/hl7/messages", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "dev-user" {
		t.Errorf("expected dev-user, got %q", got)
	}
}
