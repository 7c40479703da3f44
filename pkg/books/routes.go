package books

import (
	"github.com/labstack/echo/v4"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all book routes. Browsing is open to any
// authenticated user; mutations are admin only.
func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	bookService := NewService(db)

	h := &handler{
		bookService: bookService,
	}

	g := e.Group("/books", authMiddleware.Authenticate)
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create, authMiddleware.RequireAdmin)
	g.PUT("/:id", h.update, authMiddleware.RequireAdmin)
	g.DELETE("/:id", h.delete, authMiddleware.RequireAdmin)

	return bookService
}
