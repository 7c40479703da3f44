package users

import (
	"github.com/labstack/echo/v4"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the admin user-management routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	userService := NewService(db)

	h := &handler{
		userService: userService,
	}

	g := e.Group("/users", authMiddleware.Authenticate, authMiddleware.RequireAdmin)
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.PUT("/:id/role", h.updateRole)
	g.DELETE("/:id", h.deactivate)

	return userService
}
