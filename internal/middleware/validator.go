package middleware

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// pakai nama field JSON di pesan error
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct checks the `validate` tags of a request body and reports the
// first failure as a *analysis.ValidationError.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return analysis.Invalid("", "invalid request body")
	}
	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), structName(fe)+".")
	switch fe.Tag() {
	case "required":
		return analysis.Invalid(field, "is required")
	case "min":
		return analysis.Invalid(field, "must have at least %s item(s)", fe.Param())
	case "max":
		return analysis.Invalid(field, "must have at most %s item(s)", fe.Param())
	case "oneof":
		return analysis.Invalid(field, "must be one of: %s", fe.Param())
	}
	return analysis.Invalid(field, "failed %q validation", fe.Tag())
}

func structName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[:i]
	}
	return ns
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateSessionID validates session ID format
func ValidateSessionID(id string) error {
	if id == "" {
		return analysis.Invalid("sessionId", "is required")
	}
	if !sessionIDPattern.MatchString(id) {
		return analysis.Invalid("sessionId", "invalid format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateTargetWord bounds a semantic frame key.
func ValidateTargetWord(word string) error {
	if strings.TrimSpace(word) == "" {
		return analysis.Invalid("targetWord", "is required")
	}
	if len(word) > 200 {
		return analysis.Invalid("targetWord", "too long (%d bytes, max 200)", len(word))
	}
	return nil
}
