package models

import (
	"errors"
	"strings"
)

// ErrMissingMandatoryField is matched by every MissingFieldsError.
var ErrMissingMandatoryField = errors.New("missing required field(s)")

// MandatoryField reports whether one required attribute currently holds a value.
type MandatoryField struct {
	Name    string
	Present bool
}

// Mandatory is implemented by request models that declare required attributes.
type Mandatory interface {
	MandatoryFields() []MandatoryField
}

// MissingFieldsError lists the required fields that were unset.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return ErrMissingMandatoryField.Error() + ": " + strings.Join(e.Fields, ", ")
}

// Is makes errors.Is(err, ErrMissingMandatoryField) hold.
func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingMandatoryField
}

// MissingFields returns the names of unset mandatory fields in declaration order.
func MissingFields(m Mandatory) []string {
	var missing []string
	for _, f := range m.MandatoryFields() {
		if !f.Present {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// CheckMandatory returns a *MissingFieldsError when any mandatory field is unset.
func CheckMandatory(m Mandatory) error {
	if missing := MissingFields(m); len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}
