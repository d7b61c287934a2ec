package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// ErrInvalidRequest wraps every binding and validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// BindAndValidate binds the JSON body into out and runs validation. The
// returned error wraps ErrInvalidRequest; the caller writes the response.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return fmt.Errorf("%w: malformed body: %v", ErrInvalidRequest, err)
	}
	return Validate(v, out)
}

// Validate runs v on a decoded request.
func Validate(v *validatorv10.Validate, req interface{}) error {
	if err := v.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(err))
	}
	return nil
}

func describe(err error) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		// drop the root type name
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		parts = append(parts, fmt.Sprintf("%s failed %q", ns, fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
