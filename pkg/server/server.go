package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/tomebooks/tome/pkg/binder"
	"github.com/tomebooks/tome/pkg/bookings"
	"github.com/tomebooks/tome/pkg/books"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/mailer"
	"github.com/tomebooks/tome/pkg/passwords"
	"github.com/tomebooks/tome/pkg/users"
	"github.com/uptrace/bun"
)

// New wires up the HTTP server: binder, middleware, health routes, error
// handler, and every route group.
func New(cfg *config.Config, db *bun.DB, sender mailer.Sender) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	authService := auth.RegisterRoutes(e, db, cfg)
	authMiddleware := auth.NewMiddleware(authService)

	users.RegisterRoutes(e, db, authMiddleware)
	books.RegisterRoutes(e, db, authMiddleware)
	bookings.RegisterRoutes(e, db, cfg, authMiddleware)
	passwords.RegisterRoutes(e, db, cfg, sender, authMiddleware)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
