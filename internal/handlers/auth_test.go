package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func doLogin(t *testing.T, handler *AuthHandler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, handler.Login(e.NewContext(req, rec))
}

func TestAuthHandler_LoginWithBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	handler := NewAuthHandler(nil, "admin", string(hash), "jwt-secret", time.Hour)

	rec, err := doLogin(t, handler, `{"username":"admin","password":"s3cret"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "token")
}

func TestAuthHandler_LoginRejectsWrongPassword(t *testing.T) {
	handler := NewAuthHandler(nil, "admin", "right", "jwt-secret", time.Hour)

	_, err := doLogin(t, handler, `{"username":"admin","password":"wrong"}`)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAuthHandler_LoginDisabledWithoutAdminConfig(t *testing.T) {
	handler := NewAuthHandler(nil, "", "", "jwt-secret", time.Hour)

	_, err := doLogin(t, handler, `{"username":"admin","password":"x"}`)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}
