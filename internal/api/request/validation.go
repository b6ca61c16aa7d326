package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/warroom/internal/model"
)

var validate = validator.New()

var actorRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._@:-]{0,127}$`)

func init() {
	validate.RegisterValidation("actor", func(fl validator.FieldLevel) bool {
		return actorRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return model.Severity(fl.Field().String()).Valid()
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// DecodeOptional is Decode for endpoints whose body may be omitted. An empty
// body leaves v at its zero value, which is still validated.
func DecodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// Validate checks a struct that was not decoded from a body, such as query
// parameters.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
