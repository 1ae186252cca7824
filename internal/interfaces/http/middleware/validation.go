package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/squill/backend/internal/interfaces/http/dto"
)

// TagDecimalGT0 validates a decimal string or json.Number greater than zero
const TagDecimalGT0 = "decimal_gt0"

var registerOnce sync.Once

// RegisterValidators names validation errors after JSON fields and installs
// the custom tags used by request DTOs. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation(TagDecimalGT0, validateDecimalGT0)
	})
}

func validateDecimalGT0(fl validator.FieldLevel) bool {
	field := fl.Field()
	var raw string
	switch field.Kind() {
	case reflect.String:
		raw = field.String()
	default:
		if n, ok := field.Interface().(json.Number); ok {
			raw = n.String()
		} else {
			return false
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	return err == nil && d.IsPositive()
}

// ValidationDetails converts validator errors into response details.
// Non-validation errors yield nil.
func ValidationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

// FailedOn reports whether err is a validation failure of field on tag
func FailedOn(err error, field, tag string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, e := range verrs {
		if e.Field() == field && e.Tag() == tag {
			return true
		}
	}
	return false
}

// HandleValidationError writes a 400 for a binding failure. Malformed JSON
// and validator failures get distinct codes.
func HandleValidationError(c *gin.Context, err error) {
	requestID := GetRequestID(c)
	if details := ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", requestID, details))
		return
	}
	c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Malformed request body: "+err.Error(), requestID))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case TagDecimalGT0:
		return "Must be a number greater than zero"
	default:
		return "Invalid value"
	}
}
