package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"catalog/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	tagRequired = "required"
	tagString   = "is_string"
	tagNumber   = "is_number"
)

// productSchema declares the rules a candidate product must satisfy.
// Presence is checked separately so that a zero price reports "min" rather than "required".
// String lengths count characters (runes), not bytes or UTF-16 code units.
var productSchema = map[string]string{
	models.FieldBarCode: tagString + ",min=3",
	models.FieldPrice:   tagNumber + ",min=1",
}

// Validator checks untyped candidate entities against the product schema.
type Validator struct {
	validate *validator.Validate
	schema   map[string]string
}

// New creates a Validator for products.
func New() *Validator {
	v := validator.New()
	// Registration only fails on malformed tag names.
	_ = v.RegisterValidation(tagString, isString)
	_ = v.RegisterValidation(tagNumber, isNumber)
	return &Validator{validate: v, schema: productSchema}
}

// Validate checks candidate and returns the typed product. Every violated field is reported.
func (v *Validator) Validate(candidate map[string]any) (*models.Product, error) {
	fields := make([]string, 0, len(v.schema))
	for f := range v.schema {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var violations []FieldError
	for _, field := range fields {
		val, ok := candidate[field]
		if !ok || val == nil {
			violations = append(violations, FieldError{
				Field:   field,
				Rule:    tagRequired,
				Message: fmt.Sprintf("%s is required", field),
			})
			continue
		}

		err := v.validate.Var(normalize(val), v.schema[field])
		if err == nil {
			continue
		}
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("failed to validate %s: %w", field, err)
		}
		for _, fe := range verrs {
			violations = append(violations, FieldError{
				Field:   field,
				Rule:    fe.Tag(),
				Message: describe(field, fe),
			})
		}
	}

	if len(violations) > 0 {
		return nil, NewValidationError(violations...)
	}

	return &models.Product{
		BarCode: candidate[models.FieldBarCode].(string),
		Price:   toFloat(normalize(candidate[models.FieldPrice])),
	}, nil
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case tagString:
		return fmt.Sprintf("%s must be a string", field)
	case tagNumber:
		return fmt.Sprintf("%s must be a number", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on the '%s' tag", field, fe.Tag())
	}
}

// normalize turns json.Number into float64 so range rules compare values, not lengths.
func normalize(val any) any {
	if n, ok := val.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return val
}

func isString(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String
}

func isNumber(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(val any) float64 {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return 0
}
