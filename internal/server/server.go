// Package server assembles the echo HTTP server from registered handlers.
package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/botdeckhq/botdeck/internal/auth"
)

// Handler registers routes on the echo instance. Admin handlers and webhook
// endpoints both satisfy it.
type Handler interface {
	Register(e *echo.Echo)
}

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
	addr   string
}

// NewServer builds the HTTP server. Everything is JWT-protected except the
// health endpoints, login, and the platform webhook paths, which carry
// their own verification (signing secret / shared token).
func NewServer(log *slog.Logger, addr, jwtSecret string, handlers ...Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLogger())
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		path := c.Request().URL.Path
		if path == "/ping" || path == "/health" || path == "/auth/login" {
			return true
		}
		return strings.HasPrefix(path, "/webhooks/")
	}))

	for _, handler := range handlers {
		if handler != nil {
			handler.Register(e)
		}
	}

	return &Server{
		logger: log.With(slog.String("component", "server")),
		echo:   e,
		addr:   addr,
	}
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
