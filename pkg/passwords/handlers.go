package passwords

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/tomebooks/tome/pkg/errcodes"
)

type handler struct {
	passwordService *Service
}

// forgot starts the reset workflow. The response is identical for known and
// unknown emails.
func (h *handler) forgot(c echo.Context) error {
	ctx := c.Request().Context()

	params := ForgotPasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.passwordService.InitiateForgot(ctx, params.Email)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, result))
}

// reset redeems a token and sets a new password.
func (h *handler) reset(c echo.Context) error {
	ctx := c.Request().Context()

	params := ResetPasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.passwordService.Reset(ctx, params.Token, params.NewPassword); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, messageResponse{"Password has been reset successfully."}))
}

// change updates the authenticated user's password.
func (h *handler) change(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	params := ChangePasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.passwordService.Change(ctx, userID, params.CurrentPassword, params.NewPassword); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, messageResponse{"Password has been changed successfully."}))
}

// validate scores a candidate password without touching any account.
func (h *handler) validate(c echo.Context) error {
	params := ValidatePasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, ValidateStrength(params.Password)))
}
