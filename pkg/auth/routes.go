package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all auth routes and returns the auth service so
// other packages can share it.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config) *Service {
	authService := NewService(db, cfg)

	h := &handler{
		authService: authService,
	}

	auth := e.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.POST("/logout", h.logout)
	auth.GET("/me", h.me)

	return authService
}
