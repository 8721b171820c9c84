package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errInvalidJSON = domain.Validation("Invalid JSON body")

// decodeJSON reads a JSON object body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidJSON
	}
	return nil
}

// validateRequest runs the validate tags of req. Messages are looked up by
// "field.tag" and then by "field".
func validateRequest(req any, messages map[string]string) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.Validation("Invalid request body")
	}
	fe := verrs[0]
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return domain.Validation(msg)
	}
	if msg, ok := messages[fe.Field()]; ok {
		return domain.Validation(msg)
	}
	return domain.Validation(fe.Field() + " is invalid")
}
