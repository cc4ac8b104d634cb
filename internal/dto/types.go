package dto

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Coercing field types. Query strings arrive as JSON strings, so numbers,
// booleans and dates accept both their native JSON form and a quoted one.
// A value that cannot be coerced is reported as *json.UnmarshalTypeError,
// which the decoder annotates with the JSON field path.

var (
	intType  = reflect.TypeOf(Int(0))
	boolType = reflect.TypeOf(Bool(false))
	dateType = reflect.TypeOf(Date{})
)

// Int accepts 5 or "5".
type Int int

func (i *Int) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	s, quoted := unquote(data)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return typeError(data, quoted, intType)
	}
	*i = Int(n)
	return nil
}

// Bool accepts true, "true", "1", "false", "0".
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	s, quoted := unquote(data)
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return typeError(data, quoted, boolType)
	}
	*b = Bool(v)
	return nil
}

// Date parses either date-only ("2006-01-02") or RFC3339.
// Date-only is stored as start of that day in UTC.
// An empty string yields the zero Date, which callers treat as "clear".
type Date struct{ time.Time }

var dateLayouts = []string{
	"2006-01-02",     // date only
	time.RFC3339,     // 2006-01-02T15:04:05Z07:00
	time.RFC3339Nano, // with nanoseconds
	"2006-01-02T15:04:05",
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	s, quoted := unquote(data)
	if !quoted {
		return typeError(data, quoted, dateType)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			d.Time = parsed.UTC()
			return nil
		}
	}
	return typeError(data, quoted, dateType)
}

// Ptr returns *time.Time for use in service/domain. nil for the zero Date.
func (d Date) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func unquote(data []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, true
	}
	return string(data), false
}

func typeError(data []byte, quoted bool, t reflect.Type) error {
	v := "string"
	if !quoted {
		v = "value " + string(data)
	}
	return &json.UnmarshalTypeError{Value: v, Type: t}
}

// IsInt, IsBool and IsDate let the validator pick a message for a coercion failure.
func IsInt(t reflect.Type) bool  { return t == intType }
func IsBool(t reflect.Type) bool { return t == boolType }
func IsDate(t reflect.Type) bool { return t == dateType }
