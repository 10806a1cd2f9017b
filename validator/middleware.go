package validator

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/errors"
)

// maxBodyBytes caps the JSON bodies decoded by InputValidator.
const maxBodyBytes = 1 << 20

// keys for storing models in context
type (
	ModelKey          struct{}
	ValidatedModelKey struct{}
)

// ValidationError is the failure of a single field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every failing field of a request body.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	parts := make([]string, 0, len(ve))
	for _, err := range ve {
		parts = append(parts, err.Field+": "+err.Message)
	}
	return strings.Join(parts, ", ")
}

// AddModelMiddleware stores the zero value of the expected request model in
// the context, for InputValidator to decode into.
func (v *Validator) AddModelMiddleware(model any) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ModelKey{}, model)))
		})
	}
}

// InputValidator decodes the JSON body into a new instance of the model set
// by AddModelMiddleware and validates it. Handlers get the instance through
// ValidatedModel and can still read the body. Requests without a model pass
// through untouched.
func (v *Validator) InputValidator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model := r.Context().Value(ModelKey{})
		if model == nil {
			next.ServeHTTP(w, r)
			return
		}
		if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil ||
			mediaType != "application/json" {
			errors.ErrMalformedBody.With("expected an application/json body").Write(w)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			errors.ErrMalformedBody.WithErr(err).Write(w)
			return
		}
		instance := reflect.New(reflect.TypeOf(model)).Interface()
		if err := json.Unmarshal(body, instance); err != nil {
			errors.ErrMalformedBody.Write(w)
			return
		}
		if err := v.validator.Struct(instance); err != nil {
			fieldErrs := ValidationErrors{}
			var verrs validator.ValidationErrors
			if !stderrors.As(err, &verrs) {
				errors.ErrMalformedBody.WithErr(err).Write(w)
				return
			}
			for _, fe := range verrs {
				fieldErrs = append(fieldErrs, ValidationError{Field: fe.Field(), Message: errorMessage(fe)})
			}
			log.Debugw("request body rejected", "path", r.URL.Path, "errors", fieldErrs.Error())
			errors.ErrMalformedBody.WithErr(fieldErrs).WithData(fieldErrs).Write(w)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ValidatedModelKey{}, instance)))
	})
}

// GetValidatedModel retrieves the validated model from the context.
func GetValidatedModel(ctx context.Context) (any, bool) {
	model := ctx.Value(ValidatedModelKey{})
	return model, model != nil
}

// ValidatedModel retrieves the validated model from the context as a *T.
func ValidatedModel[T any](ctx context.Context) (*T, bool) {
	typed, ok := ctx.Value(ValidatedModelKey{}).(*T)
	return typed, ok
}

var tagMessages = map[string]string{
	"required": "This field is required",
	"gt":       "Must be greater than %s",
	"oneof":    "Must be one of: %s",
	"currency": "Invalid ISO 4217 currency code",
}

// errorMessage returns a human-readable message for a failed field.
func errorMessage(fe validator.FieldError) string {
	if msg, ok := tagMessages[fe.Tag()]; ok {
		if strings.Contains(msg, "%s") {
			return fmt.Sprintf(msg, fe.Param())
		}
		return msg
	}
	switch fe.Tag() {
	case "min", "max":
		bound := "least"
		if fe.Tag() == "max" {
			bound = "most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at %s %s characters long", bound, fe.Param())
		}
		return fmt.Sprintf("Must be at %s %s", bound, fe.Param())
	case "stripeid":
		if fe.Param() != "" {
			return fmt.Sprintf("Invalid identifier, expected a %s_ id", fe.Param())
		}
		return "Invalid identifier"
	default:
		return "Invalid value: " + fe.Tag()
	}
}
