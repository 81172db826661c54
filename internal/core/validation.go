package core

// validation.go checks raw values before any store I/O happens.
//
// Validation happens at two levels:
//  1. Header validation: maps header names (and aliases) to field positions
//     and ensures required columns are present
//  2. Value validation: checks each value against its FieldSpec (type,
//     format, enum values, bounds)

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidateValue validates a single cleaned value against a field specification.
// Returns nil if valid, or a ValidationError describing the problem.
func ValidateValue(value string, spec FieldSpec) error {
	if value == "" {
		if spec.Required {
			return ValidationError{Field: string(spec.Name), Message: "required field is empty"}
		}
		return nil
	}

	fail := func(msg string) error {
		return ValidationError{Field: string(spec.Name), Value: value, Message: msg}
	}

	switch spec.Type {
	case FieldNumeric:
		f, err := ParseNumeric(value)
		if err != nil {
			return fail("invalid number format")
		}
		if spec.Max > spec.Min && (f < spec.Min || f > spec.Max) {
			return fail(fmt.Sprintf("invalid number: must be between %g and %g", spec.Min, spec.Max))
		}
	case FieldInteger:
		n, err := ParseInteger(value)
		if err != nil {
			return fail("invalid number format, expected a whole number")
		}
		if spec.Max > spec.Min && (float64(n) < spec.Min || float64(n) > spec.Max) {
			return fail(fmt.Sprintf("invalid number: must be between %g and %g", spec.Min, spec.Max))
		}
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, value) {
				return nil
			}
		}
		return fail(fmt.Sprintf("invalid enum value, must be one of: %s", strings.Join(spec.EnumValues, ", ")))
	case FieldEmailAddr:
		at := strings.IndexByte(value, '@')
		if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " ,;") {
			return fail("invalid email address")
		}
	case FieldUUID:
		if _, err := uuid.Parse(value); err != nil {
			return fail("invalid uuid")
		}
	}
	return nil
}

// ValidateHeaders maps CSV headers onto field specs by name or alias
// (case-insensitive). The returned index is keyed by canonical field name.
// A missing required column yields a ValidationError naming every missing
// column; unknown columns are ignored.
func ValidateHeaders(headers []string, specs []FieldSpec) (HeaderIndex, error) {
	raw := MakeHeaderIndex(headers)
	idx := make(HeaderIndex, len(specs))
	var missing []string

	for _, spec := range specs {
		pos, ok := raw[string(spec.Name)]
		if !ok {
			for _, alias := range spec.Aliases {
				if pos, ok = raw[NormalizeHeader(alias)]; ok {
					break
				}
			}
		}
		if ok {
			idx[string(spec.Name)] = pos
			continue
		}
		if spec.Required {
			missing = append(missing, string(spec.Name))
		}
	}

	if len(missing) > 0 {
		return nil, ValidationError{
			Field:   strings.Join(missing, ", "),
			Message: "missing required column",
		}
	}
	return idx, nil
}

// RowValues picks the mapped fields out of a CSV row and strips
// spreadsheet artifacts from each cell.
func RowValues(row []string, idx HeaderIndex) Values {
	v := make(Values, len(idx))
	for field, pos := range idx {
		if pos < len(row) {
			v[field] = CleanCell(row[pos])
		}
	}
	return v
}

// String returns a human-readable name for a field type.
func (ft FieldType) String() string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldNumeric:
		return "numeric"
	case FieldInteger:
		return "integer"
	case FieldEmailAddr:
		return "email"
	case FieldUUID:
		return "uuid"
	default:
		return "value"
	}
}
