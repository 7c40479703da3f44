package bookings

import (
	"github.com/labstack/echo/v4"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all booking routes and returns the service so the
// background worker can share it.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, authMiddleware *auth.Middleware) *Service {
	bookingService := NewService(db, cfg)

	h := &handler{
		bookingService: bookingService,
	}

	g := e.Group("/bookings", authMiddleware.Authenticate)
	g.POST("", h.create)
	g.GET("/my", h.listMine)
	g.GET("", h.list, authMiddleware.RequireAdmin)
	g.GET("/:id", h.retrieve)
	g.PUT("/:id/status", h.updateStatus, authMiddleware.RequireAdmin)
	g.PUT("/:id/return", h.returnBooking)
	g.DELETE("/:id", h.cancel)

	return bookingService
}
