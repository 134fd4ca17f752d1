package settings

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/quillblog/quill/internal/codec"
)

var groupPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// reservedKeys are single segment keys the REST routes use as paths.
var reservedKeys = []string{"batch", "export", "import"} //nolint:gochecknoglobals

func validGroup(group string) bool {
	return groupPattern.MatchString(group)
}

func reserved(key string) bool {
	return slices.Contains(reservedKeys, key)
}

// newValidator returns a validator knowing the settingkey and settinggroup tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// errors are reported with the json names of fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	_ = v.RegisterValidation("settingkey", func(fl validator.FieldLevel) bool {
		key := fl.Field().String()

		return codec.ValidKey(key) && !reserved(key)
	})

	_ = v.RegisterValidation("settinggroup", func(fl validator.FieldLevel) bool {
		return validGroup(fl.Field().String())
	})

	return v
}

// describe turns validator errors into one readable message.
func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrors))

	for _, ve := range validationErrors {
		switch ve.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", ve.Field()))
		case "settingkey":
			if key, _ := ve.Value().(string); reserved(key) {
				msgs = append(msgs, fmt.Sprintf("%s %q is reserved", ve.Field(), key))

				continue
			}

			msgs = append(msgs, fmt.Sprintf("%s %q is not a dotted path of at most %d characters",
				ve.Field(), ve.Value(), codec.MaxKeyLength))
		case "settinggroup":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid group name", ve.Field(), ve.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("field '%s' failed validation tag '%s'", ve.Field(), ve.Tag()))
		}
	}

	return strings.Join(msgs, "; ")
}
