package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeValid decodes the JSON body and applies struct tag validation.
func DecodeValid(r *http.Request, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return shared.Validationf("corpo da requisição inválido")
	}
	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return shared.Validationf("campo %s inválido", verrs[0].Field())
		}
		return shared.Validationf("corpo da requisição inválido")
	}
	return nil
}
