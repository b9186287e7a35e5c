package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/cppla/forumposts/models"
)

const bodyKey = "validatedBody"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type selfValidator interface {
	Validate() error
}

// ValidateJSON decodes the request body into T and validates it. Unknown
// fields are ignored. On success the value is available through Body[T].
func ValidateJSON[T any]() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var body T
		if err := ctx.ShouldBindJSON(&body); err != nil {
			abortInvalid(ctx, models.NewValidationError("body", "must be a valid JSON object"))
			return
		}
		if err := validate.Struct(body); err != nil {
			abortInvalid(ctx, toValidationError(err))
			return
		}
		if v, ok := any(body).(selfValidator); ok {
			if err := v.Validate(); err != nil {
				abortInvalid(ctx, err)
				return
			}
		}
		ctx.Set(bodyKey, body)
		ctx.Next()
	}
}

// Body returns the value stored by ValidateJSON.
func Body[T any](ctx *gin.Context) T {
	body, _ := ctx.MustGet(bodyKey).(T)
	return body
}

func abortInvalid(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewValidationError("body", err.Error())
	}
	fe := fieldErrs[0]
	return models.NewValidationError(fe.Field(), ruleMessage(fe))
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
