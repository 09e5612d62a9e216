package interpolation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Tag marks a field for expansion: `env_interpolation:"yes"`.
const Tag = "env_interpolation"

// InterpolateStruct expands the tagged fields of the struct v points to, in
// place. Tagged strings and string slices are expanded; tagged structs, struct
// pointers and struct slices are walked, where again only tagged fields
// change.
func InterpolateStruct(v any) error {
	if v == nil {
		return nil
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Pointer {
		return fmt.Errorf("expected a pointer to a struct, got %T", v)
	}
	if val.IsNil() {
		return nil
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected a pointer to a struct, got %T", v)
	}
	return interpolateFields(val)
}

func interpolateFields(val reflect.Value) error {
	typ := val.Type()
	var errs []error

	for i := range val.NumField() {
		field, info := val.Field(i), typ.Field(i)
		if !field.CanSet() || strings.ToLower(info.Tag.Get(Tag)) != "yes" {
			continue
		}
		if err := interpolateValue(field); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", info.Name, err))
		}
	}
	return errors.Join(errs...)
}

func interpolateValue(field reflect.Value) error {
	switch field.Kind() {
	case reflect.String:
		expanded, err := ExpandEnvVars(field.String())
		if err != nil {
			return err
		}
		field.SetString(expanded)
		return nil

	case reflect.Struct:
		return interpolateFields(field)

	case reflect.Pointer:
		if field.IsNil() || field.Elem().Kind() != reflect.Struct {
			return nil
		}
		return interpolateFields(field.Elem())

	case reflect.Slice:
		var errs []error
		for j := range field.Len() {
			if err := interpolateValue(field.Index(j)); err != nil {
				errs = append(errs, fmt.Errorf("[%d]: %w", j, err))
			}
		}
		return errors.Join(errs...)
	}
	return nil
}
