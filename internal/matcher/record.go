package matcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"strinks/internal/services"
	"strinks/internal/textutil"
)

// Record is one retail listing as produced by the shop scrapers. Price,
// Volume and Shop are carried through to the sink untouched.
type Record struct {
	Name       string          `json:"name" validate:"required,max=300"`
	Brewery    string          `json:"brewery" validate:"max=200"`
	NativeName string          `json:"nativeName,omitempty" validate:"max=300"`
	Price      json.RawMessage `json:"price,omitempty"`
	Volume     json.RawMessage `json:"volume,omitempty"`
	Shop       string          `json:"shop,omitempty" validate:"max=100"`
}

// Fingerprint returns the cache key of the record.
func (r Record) Fingerprint() string {
	return textutil.RecordKey(r.Name, r.Brewery)
}

// sourceName is the text translation and romanization start from.
func (r Record) sourceName() string {
	if r.NativeName != "" {
		return r.NativeName
	}
	return r.Name
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report json field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		validate = v
	})
	return validate
}

// Clean returns the record with text fields trimmed, or a validation error
// naming the first offending field.
func (r Record) Clean() (Record, error) {
	r.Name = textutil.CollapseSpace(r.Name)
	r.Brewery = textutil.CollapseSpace(r.Brewery)
	r.NativeName = textutil.CollapseSpace(r.NativeName)
	r.Shop = strings.TrimSpace(r.Shop)

	if err := recordValidator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			msg := fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
			if fe.Param() != "" {
				msg = fmt.Sprintf("%s failed %q (%s)", fe.Field(), fe.Tag(), fe.Param())
			}
			return r, services.Wrap(services.ErrValidation, "matcher", "validate record", msg, nil)
		}
		return r, services.Wrap(services.ErrValidation, "matcher", "validate record", "", err)
	}
	if textutil.Normalize(r.Name) == "" {
		return r, services.Wrap(services.ErrValidation, "matcher", "validate record", "name has no comparable text", nil)
	}
	return r, nil
}
