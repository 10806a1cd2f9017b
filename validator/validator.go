package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/go-playground/validator/v10"
)

// stripeIDRegex matches the "<prefix>_<token>" identifiers issued by the
// payment processor.
var stripeIDRegex = regexp.MustCompile(`^[a-z]+_[A-Za-z0-9_]+$`)

// Validator is a wrapper around the go-playground/validator package.
type Validator struct {
	validator *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	v := validator.New()
	// report fields by the name clients send them with
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Register custom validation functions
	_ = v.RegisterValidation("currency", validateCurrency)
	_ = v.RegisterValidation("stripeid", validateStripeID)

	return &Validator{
		validator: v,
	}
}

// Validate validates a struct using the validator package.
func (v *Validator) Validate(s any) error {
	return v.validator.Struct(s)
}

// validateCurrency accepts ISO 4217 codes known to go-money, in any case.
func validateCurrency(fl validator.FieldLevel) bool {
	// If the field is empty, it's valid (use required tag if it's required)
	code := fl.Field().String()
	if code == "" {
		return true
	}
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// validateStripeID checks the shape of a processor identifier. The tag
// parameter, when present, is the expected prefix: `stripeid=price`.
func validateStripeID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" {
		return true
	}
	if !stripeIDRegex.MatchString(id) {
		return false
	}
	if prefix := fl.Param(); prefix != "" {
		return strings.HasPrefix(id, prefix+"_")
	}
	return true
}
