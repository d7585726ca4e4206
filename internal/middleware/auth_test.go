package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func newAuthContext(token string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestJWTAuth_NumericAndStringSubjects(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	for _, sub := range []any{7, "7"} {
		token := signToken(t, testSecret, jwt.MapClaims{"sub": sub, "role": models.RoleAdmin, "exp": exp})
		c, rec := newAuthContext(token)

		err := JWTAuth(testSecret)(okHandler)(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		id, ok := UserID(c)
		assert.True(t, ok)
		assert.Equal(t, uint(7), id)
		assert.Equal(t, models.RoleAdmin, Role(c))
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	cases := map[string]string{
		"missing":      "",
		"wrong secret": signToken(t, "other", jwt.MapClaims{"sub": 1, "exp": exp}),
		"expired":      signToken(t, testSecret, jwt.MapClaims{"sub": 1, "exp": time.Now().Add(-time.Minute).Unix()}),
		"no subject":   signToken(t, testSecret, jwt.MapClaims{"exp": exp}),
		"garbage":      "not.a.token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newAuthContext(token)
			err := JWTAuth(testSecret)(okHandler)(c)

			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, he.Code)
		})
	}
}

func TestJWTAuth_UnknownRoleIsUser(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "3", "role": "SUPERUSER"})
	c, _ := newAuthContext(token)

	require.NoError(t, JWTAuth(testSecret)(okHandler)(c))
	assert.Equal(t, models.RoleUser, Role(c))
}

func TestOptionalJWT(t *testing.T) {
	c, rec := newAuthContext("")
	require.NoError(t, OptionalJWT(testSecret)(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, ok := UserID(c)
	assert.False(t, ok)

	c, _ = newAuthContext("broken")
	err := OptionalJWT(testSecret)(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireRole(t *testing.T) {
	c, _ := newAuthContext("")
	c.Set(ctxUserID, uint(1))
	c.Set(ctxRole, models.RoleUser)

	err := RequireRole(models.RoleAdmin)(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)

	c.Set(ctxRole, models.RoleAdmin)
	assert.NoError(t, RequireRole(models.RoleAdmin)(okHandler)(c))
}
