package services

import (
	"fmt"
	"math"
	"strings"

	"catalog/internal/validation"

	"github.com/spf13/cast"
)

const (
	DefaultLimit  = 20
	DefaultOffset = 0
)

// PaginationMode decides what happens to pagination input that cannot be used as-is.
type PaginationMode string

const (
	// PaginationLenient replaces unusable input with the default.
	PaginationLenient PaginationMode = "lenient"
	// PaginationStrict rejects unusable input with a validation error.
	PaginationStrict PaginationMode = "strict"
)

// Pagination bounds a list call. The zero value means the defaults.
type Pagination struct {
	Limit  int
	Offset int
}

func (p Pagination) withDefaults() Pagination {
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Offset < 0 {
		p.Offset = DefaultOffset
	}
	return p
}

// ParsePagination coerces raw limit and offset values, such as query string parameters.
// Absent values (nil or blank) take the defaults. Fractions are truncated.
func ParsePagination(rawLimit, rawOffset any, mode PaginationMode) (Pagination, error) {
	var violations []validation.FieldError

	limit, fe := parseBound("limit", rawLimit, DefaultLimit, 1, mode)
	if fe != nil {
		violations = append(violations, *fe)
	}
	offset, fe := parseBound("offset", rawOffset, DefaultOffset, 0, mode)
	if fe != nil {
		violations = append(violations, *fe)
	}

	if len(violations) > 0 {
		return Pagination{}, validation.NewValidationError(violations...)
	}
	return Pagination{Limit: limit, Offset: offset}, nil
}

func parseBound(field string, raw any, def, floor int, mode PaginationMode) (int, *validation.FieldError) {
	if raw == nil {
		return def, nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return def, nil
	}

	f, err := cast.ToFloat64E(raw)
	if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		n := math.Trunc(f)
		if n >= float64(floor) && n <= math.MaxInt32 {
			return int(n), nil
		}
	}

	if mode == PaginationStrict {
		return 0, &validation.FieldError{
			Field:   field,
			Rule:    "min",
			Message: fmt.Sprintf("%s must be a number greater than or equal to %d", field, floor),
		}
	}
	return def, nil
}
