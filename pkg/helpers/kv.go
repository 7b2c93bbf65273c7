package helpers

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// FillStructFromKV sets the string fields of the struct v points to from kv. Fields are
// selected by a `kv:"KEY"` tag; a missing or empty value is an error unless the tag ends
// in ",optional".
func FillStructFromKV(kv map[string]string, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("expected a pointer to a struct, got %T", v)
	}
	target := rv.Elem()

	for i := 0; i < target.NumField(); i++ {
		tag, ok := target.Type().Field(i).Tag.Lookup("kv")
		if !ok || tag == "" {
			continue
		}
		key, opts, _ := strings.Cut(tag, ",")
		optional := opts == "optional"

		value := kv[key]
		if value == "" {
			if optional {
				continue
			}
			return errors.Errorf("missing value for %s", key)
		}

		field := target.Field(i)
		if field.Kind() != reflect.String || !field.CanSet() {
			return errors.Errorf("field for %s must be an exported string", key)
		}
		field.SetString(value)
	}

	return nil
}

// ParseKV transforms a simple line-based format. Each line holds a key value pair separated
// by sep. Empty lines and lines starting with # are ignored, keys and values are trimmed, and
// a value wrapped in matching single or double quotes is unquoted. An "export " prefix, as
// written by shell env files, is dropped.
func ParseKV(s string, sep string) map[string]string {
	m := make(map[string]string)

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		parts := strings.SplitN(line, sep, 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		m[key] = unquote(strings.TrimSpace(parts[1]))
	}

	return m
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '\'' || first == '"') && first == last {
			return v[1 : len(v)-1]
		}
	}
	return v
}
