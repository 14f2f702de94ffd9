package lead

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Params are the inputs of one run.
type Params struct {
	Niche    string `validate:"required" json:"niche" yaml:"niche"`
	Location string `validate:"required" json:"location" yaml:"location"`
	Limit    int    `validate:"min=1,max=50" json:"limit" yaml:"limit"`
}

// Query returns the search phrase sent to the listing feed.
func (p Params) Query() string {
	return strings.TrimSpace(p.Niche) + " in " + strings.TrimSpace(p.Location)
}

// ValidationError describes one invalid parameter.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", strings.ToLower(e.Field), e.Message)
}

// ErrInvalidParams is wrapped by every error returned from Validate.
var ErrInvalidParams = errors.New("invalid run parameters")

var validate = validator.New()

// Normalized returns p with surrounding whitespace removed from the text
// fields.
func (p Params) Normalized() Params {
	p.Niche = strings.TrimSpace(p.Niche)
	p.Location = strings.TrimSpace(p.Location)
	return p
}

// Validate checks the parameters. Surrounding whitespace is ignored for the
// text fields.
func (p Params) Validate() error {
	err := validate.Struct(p.Normalized())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, ValidationError{
			Field:   e.Field(),
			Message: formatValidationError(e),
			Value:   e.Value(),
		}.Error())
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(msgs, "; "))
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
