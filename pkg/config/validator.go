package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// FieldError reports one rejected configuration field by its dotted path
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// fieldValue resolves a dotted path such as "Alert.SendGrid.APIKey"
func fieldValue(config interface{}, path string) (reflect.Value, error) {
	current := reflect.ValueOf(config)
	for _, part := range strings.Split(path, ".") {
		for current.Kind() == reflect.Ptr || current.Kind() == reflect.Interface {
			if current.IsNil() {
				return reflect.Value{}, &FieldError{Field: path, Reason: "nil along path"}
			}
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return reflect.Value{}, &FieldError{Field: path, Reason: "not a struct field"}
		}
		current = current.FieldByName(part)
		if !current.IsValid() {
			return reflect.Value{}, &FieldError{Field: path, Reason: "no such field"}
		}
	}
	return current, nil
}

func asFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

// RequiredFields rejects fields left at their zero value
func RequiredFields(fields ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		var missing []string
		for _, path := range fields {
			v, err := fieldValue(config, path)
			if err != nil {
				return err
			}
			if v.IsZero() {
				missing = append(missing, path)
			}
		}
		if len(missing) > 0 {
			return &FieldError{Field: strings.Join(missing, ", "), Reason: "required"}
		}
		return nil
	})
}

// RequiredWhen rejects an empty field only while the guard field is set,
// e.g. a NATS subject once a NATS URL is configured.
func RequiredWhen(guard string, fields ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		g, err := fieldValue(config, guard)
		if err != nil {
			return err
		}
		if g.IsZero() {
			return nil
		}
		if err := RequiredFields(fields...).Validate(config); err != nil {
			return fmt.Errorf("%w (needed when %s is set)", err, guard)
		}
		return nil
	})
}

// RangeValidator checks a numeric field against [min, max]
func RangeValidator(path string, min, max float64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := fieldValue(config, path)
		if err != nil {
			return err
		}
		n, ok := asFloat(v)
		if !ok {
			return &FieldError{Field: path, Reason: "not numeric"}
		}
		if n < min || n > max {
			return &FieldError{Field: path, Reason: fmt.Sprintf("%g outside [%g, %g]", n, min, max)}
		}
		return nil
	})
}

// PositiveDuration rejects zero and negative time.Duration fields
func PositiveDuration(paths ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		for _, path := range paths {
			v, err := fieldValue(config, path)
			if err != nil {
				return err
			}
			if v.Type() != durationType {
				return &FieldError{Field: path, Reason: "not a duration"}
			}
			if d := time.Duration(v.Int()); d <= 0 {
				return &FieldError{Field: path, Reason: fmt.Sprintf("%s is not positive", d)}
			}
		}
		return nil
	})
}

// OneOfValidator restricts a field to the listed values
func OneOfValidator(path string, allowed ...interface{}) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := fieldValue(config, path)
		if err != nil {
			return err
		}
		got := v.Interface()
		for _, a := range allowed {
			if reflect.DeepEqual(got, a) {
				return nil
			}
		}
		return &FieldError{Field: path, Reason: fmt.Sprintf("%v is not one of %v", got, allowed)}
	})
}
