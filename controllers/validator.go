package controllers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/commercive_backend/models"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator reports field errors by their JSON names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// validate runs the echo validator and converts the first failure into a validation error.
func validate(c echo.Context, v interface{}) error {
	err := c.Validate(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return models.MissingField(fe.Field())
		case "email":
			return models.ValidationError(fe.Field(), "invalid email format")
		case "oneof":
			return models.ValidationError(fe.Field(), fe.Field()+" must be one of: "+fe.Param())
		default:
			return models.ValidationError(fe.Field(), fe.Field()+" failed "+fe.Tag()+" validation")
		}
	}
	return models.ValidationError("body", err.Error())
}
