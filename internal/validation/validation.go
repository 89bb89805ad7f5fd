// Package validation checks request structs against their `validate` tags and
// reports the first failing field as a domain error.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"LedgerApi/internal/model"
)

// ErrValidatorInit is returned when a custom rule cannot be registered.
var ErrValidatorInit = errors.New("validator initialization failed")

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	vld.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return toSnakeCase(f.Name)
		}
		return name
	})

	if err := vld.RegisterValidation("webhookurl", isWebhookURL); err != nil {
		return nil, fmt.Errorf("%w: failed to register 'webhookurl': %w", ErrValidatorInit, err)
	}

	return vld, nil
}

// Get returns the shared validator.
func Get() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	return validate, errValidate
}

// Struct validates payload. A failing field is returned wrapping the model
// error its Go field name maps to, so callers keep one status mapping.
func Struct(payload any) error {
	vld, err := Get()
	if err != nil {
		return err
	}

	if err := vld.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return err
	}
	return nil
}

// Var validates a single value against tag and reports whether it passed.
func Var(value any, tag string) bool {
	vld, err := Get()
	if err != nil {
		return false
	}
	return vld.Var(value, tag) == nil
}

// isWebhookURL accepts https, and plain http only for local hosts.
func isWebhookURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}

	switch u.Scheme {
	case "https":
		return true
	case "http":
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "0.0.0.0":
			return true
		}
	}
	return false
}

func sentinelFor(fe validator.FieldError) error {
	if fe.Tag() == "nefield" {
		return model.ErrSameAccount
	}

	switch fe.StructField() {
	case "Amount", "InitialBalance":
		return model.ErrInvalidAmount
	case "URL":
		return model.ErrInvalidWebhookURL
	case "IdempotencyKey":
		return model.ErrInvalidIdempotencyKey
	default:
		return model.ErrInvalidAccount
	}
}

var reasons = map[string]func(param string) string{
	"required":   func(string) string { return "is required" },
	"max":        func(p string) string { return "must be at most " + p + " characters" },
	"len":        func(p string) string { return "must be exactly " + p + " characters" },
	"gt":         func(p string) string { return "must be greater than " + p },
	"gte":        func(p string) string { return "must be at least " + p },
	"uuid":       func(string) string { return "must be a valid UUID" },
	"alpha":      func(string) string { return "must contain letters only" },
	"uppercase":  func(string) string { return "must be upper-case" },
	"url":        func(string) string { return "must be an absolute URL" },
	"webhookurl": func(string) string { return "must use https, or http on localhost" },
	"nefield":    func(p string) string { return "must differ from " + toSnakeCase(p) },
}

func fieldError(fe validator.FieldError) error {
	sentinel := sentinelFor(fe)
	if reason, ok := reasons[fe.Tag()]; ok {
		return fmt.Errorf("%w: '%s' %s", sentinel, fe.Field(), reason(fe.Param()))
	}
	return fmt.Errorf("%w: '%s' failed on '%s'", sentinel, fe.Field(), fe.Tag())
}

// toSnakeCase turns Go field names such as FromAccountID into from_account_id.
func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
