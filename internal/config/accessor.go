package config

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Config keys are addressed by their JSON names joined with dots, such as
// "delivery.burstSize" or "browser.selectors.avatars". Keys are resolved
// against the Config struct itself, so fields omitted from the file are
// still addressable and unknown keys are rejected.

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func structFields(t reflect.Type) []reflect.StructField {
	fields := make([]reflect.StructField, t.NumField())
	for i := range fields {
		fields[i] = t.Field(i)
	}
	return fields
}

func resolve(cfg *Config, path string) (reflect.Value, error) {
	if path == "" {
		return reflect.Value{}, fmt.Errorf("empty path")
	}
	v := reflect.ValueOf(cfg).Elem()
	for _, key := range strings.Split(path, ".") {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("key not found: %s (%s is not a section)", path, key)
		}
		i := slices.IndexFunc(structFields(v.Type()), func(f reflect.StructField) bool {
			return f.IsExported() && jsonName(f) == key
		})
		if i < 0 {
			return reflect.Value{}, fmt.Errorf("key not found: %s", path)
		}
		v = v.Field(i)
	}
	return v, nil
}

// GetByPath returns the value at path. A section path returns the whole
// section struct.
func GetByPath(cfg *Config, path string) (any, error) {
	v, err := resolve(cfg, path)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetByPath parses raw into the type of the key at path. Lists take
// comma-separated values; an empty string clears them.
func SetByPath(cfg *Config, path, raw string) error {
	v, err := resolve(cfg, path)
	if err != nil {
		return err
	}
	if err := assign(v, raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func assign(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", raw)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", raw)
		}
		v.SetInt(n)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list type %s", v.Type())
		}
		items := lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
		v.Set(reflect.ValueOf(items))
	case reflect.Struct:
		return fmt.Errorf("is a section; set one of its keys")
	default:
		return fmt.Errorf("unsupported type %s", v.Type())
	}
	return nil
}

// ListPaths returns every settable key with its current value.
func ListPaths(cfg *Config) map[string]any {
	result := make(map[string]any)
	collectLeaves("", reflect.ValueOf(cfg).Elem(), result)
	return result
}

func collectLeaves(prefix string, v reflect.Value, out map[string]any) {
	for i, f := range structFields(v.Type()) {
		if !f.IsExported() {
			continue
		}
		path := jsonName(f)
		if prefix != "" {
			path = prefix + "." + path
		}
		if fv := v.Field(i); fv.Kind() == reflect.Struct {
			collectLeaves(path, fv, out)
		} else {
			out[path] = fv.Interface()
		}
	}
}

// SortedPaths returns the keys of ListPaths in lexical order.
func SortedPaths(paths map[string]any) []string {
	keys := lo.Keys(paths)
	slices.Sort(keys)
	return keys
}
