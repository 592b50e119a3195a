package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// bindAndValidate binds the request body into req and checks its validate
// tags.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := validate.Struct(req); err != nil {
		return NewRequestValidationError(err)
	}
	return nil
}
