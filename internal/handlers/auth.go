package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/botdeckhq/botdeck/internal/auth"
)

// AuthHandler issues JWTs for the admin API.
type AuthHandler struct {
	logger    *slog.Logger
	username  string
	password  string
	jwtSecret string
	expiresIn time.Duration
}

func NewAuthHandler(log *slog.Logger, username, password, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		logger:    log.With(slog.String("handler", "auth")),
		username:  username,
		password:  password,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if h.username == "" || h.password == "" {
		return echo.NewHTTPError(http.StatusForbidden, "admin login disabled")
	}
	if subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) != 1 || !passwordMatches(h.password, req.Password) {
		h.logger.Warn("failed login attempt", slog.String("username", req.Username))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	token, expiresAt, err := auth.GenerateToken(h.username, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token generation failed")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// passwordMatches accepts a bcrypt hash in config, or a plain value for
// local development, compared in constant time.
func passwordMatches(stored, provided string) bool {
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)); err == nil {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}
