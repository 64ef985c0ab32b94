// Package schema decodes service data into typed request structs with a
// closed key set and validates them with struct tags.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is a field-level rejection.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "invalid service data: " + e.Reason
	}
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode strictly decodes data into v and validates it. v must be a pointer
// to a struct. Unknown keys, wrong JSON types and null values are rejected;
// an optional key is either absent or carries a value.
func Decode(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := rejectNulls(data); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &Error{Reason: "trailing data after object"}
	}
	return Validate(v)
}

// rejectNulls reports the first top-level key, in sorted order, whose value
// is JSON null. Bodies that are not objects are left to the strict decoder.
func rejectNulls(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k, raw := range fields {
		if string(bytes.TrimSpace(raw)) == "null" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return &Error{Field: keys[0], Reason: "null is not allowed"}
}

// Validate checks struct tags and reports the first offending field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return &Error{Field: fe.Field(), Reason: reason(fe)}
	}
	return &Error{Reason: err.Error()}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required key not provided"
	case "oneof":
		return "value must be one of [" + strings.ReplaceAll(fe.Param(), " ", ", ") + "]"
	case "min":
		return "value must be at least " + fe.Param()
	case "max":
		return "value must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &Error{Field: typeErr.Field, Reason: "expected " + kindName(typeErr.Type)}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &Error{Reason: "malformed json: " + syntaxErr.Error()}
	}
	// encoding/json reports unknown keys only as text.
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return &Error{Field: field, Reason: "extra keys not allowed"}
	}
	return &Error{Reason: err.Error()}
}

func kindName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "str"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Bool:
		return "bool"
	case reflect.Map, reflect.Struct:
		return "dict"
	default:
		return t.String()
	}
}
