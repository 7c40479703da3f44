package passwords

import (
	"github.com/labstack/echo/v4"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/tomebooks/tome/pkg/mailer"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the password workflow routes under /auth and
// returns the service so the background worker can share it.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, sender mailer.Sender, authMiddleware *auth.Middleware) *Service {
	passwordService := NewService(db, cfg, sender)

	h := &handler{
		passwordService: passwordService,
	}

	g := e.Group("/auth")
	g.POST("/forgot-password", h.forgot)
	g.POST("/reset-password", h.reset)
	g.POST("/change-password", h.change, authMiddleware.Authenticate)
	g.POST("/validate-password", h.validate)

	return passwordService
}
