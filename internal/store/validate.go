package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"atelier/internal/model"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// normalizeFields drops unknown keys and trims values. Bool fields are
// canonicalised to "true"/"false" so filters and copies compare cleanly.
func normalizeFields(res model.Resource, in map[string]string) map[string]string {
	out := make(map[string]string, len(res.Fields))
	for _, f := range res.Fields {
		v := strings.TrimSpace(in[f.Name])
		if f.Kind == model.FieldBool {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				v = "true"
			case "0", "false", "no", "off":
				v = "false"
			}
		}
		out[f.Name] = v
	}
	return out
}

// ValidateFields checks every field of res against its rules and returns
// model.FieldErrors (nil when valid).
func ValidateFields(res model.Resource, fields map[string]string) error {
	v := validatorInstance()
	errs := model.FieldErrors{}
	for _, f := range res.Fields {
		if strings.TrimSpace(f.Rules) == "" {
			continue
		}
		err := v.Var(fields[f.Name], f.Rules)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			errs[f.Name] = fieldMessage(f, verrs[0])
			continue
		}
		errs[f.Name] = err.Error()
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func fieldMessage(f model.FieldDef, fe validator.FieldError) string {
	label := f.Label
	if label == "" {
		label = f.Name
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "url":
		return label + " must be a valid URL"
	case "email":
		return label + " must be a valid email address"
	case "hexcolor":
		return label + " must be a hex color like #1a2b3c"
	case "number":
		return label + " must be a whole number"
	case "boolean":
		return label + " must be true or false"
	case "iso4217":
		return label + " must be an ISO 4217 currency code"
	default:
		return fmt.Sprintf("%s failed %q", label, fe.Tag())
	}
}
