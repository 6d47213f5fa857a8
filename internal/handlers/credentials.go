package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/botdeckhq/botdeck/internal/credentials"
	"github.com/botdeckhq/botdeck/internal/deployment"
)

// CredentialsHandler connects and inspects platform OAuth credentials.
// Tokens are never echoed back in full.
type CredentialsHandler struct {
	logger   *slog.Logger
	store    *credentials.Store
	registry *deployment.Registry
}

func NewCredentialsHandler(log *slog.Logger, store *credentials.Store, registry *deployment.Registry) *CredentialsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CredentialsHandler{
		logger:   log.With(slog.String("handler", "credentials")),
		store:    store,
		registry: registry,
	}
}

func (h *CredentialsHandler) Register(e *echo.Echo) {
	e.GET("/api/owners/:ownerID/credentials/:provider", h.GetByOwner)
	e.PUT("/api/credentials", h.Connect)
	e.DELETE("/api/credentials/:id", h.Delete)
}

// credentialView is the redacted representation returned to the admin API.
type credentialView struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Provider          string    `json:"provider"`
	PlatformAccountID string    `json:"platform_account_id,omitempty"`
	AccessTokenHint   string    `json:"access_token_hint"`
	HasRefreshToken   bool      `json:"has_refresh_token"`
	Scope             string    `json:"scope,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func viewOf(cred credentials.Credential) credentialView {
	hint := cred.AccessToken
	if len(hint) > 4 {
		hint = "..." + hint[len(hint)-4:]
	}
	return credentialView{
		ID:                cred.ID,
		OwnerID:           cred.OwnerID,
		Provider:          cred.Provider.String(),
		PlatformAccountID: cred.PlatformAccountID,
		AccessTokenHint:   hint,
		HasRefreshToken:   cred.RefreshToken != "",
		Scope:             cred.Scope,
		ExpiresAt:         cred.ExpiresAt,
		UpdatedAt:         cred.UpdatedAt,
	}
}

func (h *CredentialsHandler) GetByOwner(c echo.Context) error {
	provider, err := h.registry.Parse(c.Param("provider"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cred, err := h.store.GetByOwner(c.Request().Context(), c.Param("ownerID"), provider)
	if errors.Is(err, credentials.ErrCredentialNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "credential not found")
	}
	if err != nil {
		h.logger.Error("get credential failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "get credential failed")
	}
	return c.JSON(http.StatusOK, viewOf(cred))
}

type connectRequest struct {
	OwnerID           string `json:"owner_id"`
	Provider          string `json:"provider"`
	PlatformAccountID string `json:"platform_account_id"`
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	Scope             string `json:"scope"`
	ExpiresIn         int64  `json:"expires_in"`
}

// Connect stores a credential obtained from a platform's OAuth install
// flow. The dashboard completes the code exchange and hands the tokens
// here.
func (h *CredentialsHandler) Connect(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	provider, err := h.registry.Parse(req.Provider)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.OwnerID == "" || req.AccessToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "owner_id and access_token are required")
	}
	cred := credentials.Credential{
		OwnerID:           req.OwnerID,
		Provider:          provider,
		PlatformAccountID: req.PlatformAccountID,
		AccessToken:       req.AccessToken,
		RefreshToken:      req.RefreshToken,
		Scope:             req.Scope,
	}
	if req.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
	}
	saved, err := h.store.SaveRefreshed(c.Request().Context(), cred)
	if err != nil {
		h.logger.Error("save credential failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "save credential failed")
	}
	return c.JSON(http.StatusOK, viewOf(saved))
}

func (h *CredentialsHandler) Delete(c echo.Context) error {
	err := h.store.Delete(c.Request().Context(), c.Param("id"))
	if errors.Is(err, credentials.ErrCredentialNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "credential not found")
	}
	if err != nil {
		h.logger.Error("delete credential failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "delete credential failed")
	}
	return c.NoContent(http.StatusNoContent)
}
