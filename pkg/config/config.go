// Package config loads YAML/JSON configuration files and overlays
// environment variables onto the decoded structs.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Validator validates configuration
type Validator interface {
	Validate(config interface{}) error
}

// ValidatorFunc is a function that validates configuration
type ValidatorFunc func(config interface{}) error

func (f ValidatorFunc) Validate(config interface{}) error {
	return f(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

// Load decodes a configuration file, picking JSON for a .json extension
// and YAML otherwise
func Load(path string, target interface{}) error {
	return loadFile(codecFor(path), path, target)
}

// ApplyEnvOverrides overlays environment variables onto a config struct.
//
// A field's variable is PREFIX_SECTION_KEY built from the yaml tags, so
// server.read_timeout under EXCHANGER is EXCHANGER_SERVER_READ_TIMEOUT. A
// field tagged `env:"NAME"` is read from NAME instead, which keeps the
// established names such as MAX_WORKERS and SENDGRID_API_KEY working.
func ApplyEnvOverrides(prefix string, target interface{}) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}
	if prefix == "" {
		prefix = EnvPrefix
	}
	return applyEnv(prefix, val.Elem())
}

// envName derives the variable suffix for a field from its yaml key
func envName(f reflect.StructField) string {
	name := strings.Split(f.Tag.Get("yaml"), ",")[0]
	if name == "" || name == "-" {
		name = f.Name
	}
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func applyEnv(prefix string, val reflect.Value) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field, sf := val.Field(i), typ.Field(i)
		if !field.CanSet() {
			continue
		}
		key := prefix + "_" + envName(sf)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyEnv(key, field); err != nil {
				return err
			}
			continue
		}
		if name := sf.Tag.Get("env"); name != "" {
			key = name
		}

		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := setFromEnv(field, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("env %s (field %s): %w", key, sf.Name, err)
		}
	}
	return nil
}

// setFromEnv parses raw into field; config fields are scalars and durations
func setFromEnv(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q", raw)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float %q", raw)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool %q", raw)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}

// Validate runs every validator and reports all failures together
func Validate(config interface{}, validators ...Validator) error {
	var errs []error
	for _, validator := range validators {
		if err := validator.Validate(config); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}
