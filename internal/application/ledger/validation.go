package ledger

import (
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report field names as they appear in event JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validatePayload checks struct tags on an inbound event and converts
// failures into a ledger validation error.
func validatePayload(payload any) error {
	err := payloadValidator.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ledger.ErrValidation.Newf("invalid payload: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Namespace()+": "+validationMessage(fe))
	}
	return ledger.ErrValidation.Newf("invalid payload: %s", strings.Join(msgs, "; "))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "gtefield":
		return "must not be before " + e.Param()
	default:
		return "is invalid"
	}
}

// requireNonNegative rejects negative monetary figures by name.
func requireNonNegative(amounts map[string]decimal.Decimal) error {
	var bad []string
	for name, amt := range amounts {
		if amt.IsNegative() {
			bad = append(bad, name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	slices.Sort(bad)
	return ledger.ErrValidation.Newf("negative amounts: %s", strings.Join(bad, ", "))
}
