// Package document models a parsed report document as a recursive value and
// gives explicit, fallible access to its fields.
//
// Report schemas differ per pipeline and change between versions, so nothing
// here is typed per schema. Field access fails with ErrFieldMissing rather
// than returning a zero value, and the caller decides what a gap means.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the tag of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindNumber: "number",
	KindString: "string",
	KindArray:  "array",
	KindObject: "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

var (
	ErrFieldMissing = errors.New("field missing")
	ErrTypeMismatch = errors.New("type mismatch")
)

// FieldError carries the path at which an access failed.
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Value is one node of a parsed document.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []*Value
	obj  *Object
	path string
}

// Object is an insertion-ordered set of fields.
type Object struct {
	keys   []string
	fields map[string]*Value
}

func newObject() *Object {
	return &Object{fields: make(map[string]*Value)}
}

// set stores a field, returning the key actually used. Repeated keys are
// renamed key_1, key_2, ... skipping any suffix already present.
func (o *Object) set(key string, v *Value) (string, bool) {
	name := key
	renamed := false
	for i := 1; ; i++ {
		if _, taken := o.fields[name]; !taken {
			break
		}
		name = key + "_" + strconv.Itoa(i)
		renamed = true
	}
	o.keys = append(o.keys, name)
	o.fields[name] = v
	return name, renamed
}

// Null returns a null value.
func Null() *Value { return &Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) *Value { return &Value{kind: KindBool, b: b} }

// Number wraps a number literal.
func Number(n json.Number) *Value { return &Value{kind: KindNumber, num: n} }

// String wraps a string.
func String(s string) *Value { return &Value{kind: KindString, str: s} }

// Kind returns the tag of the value; a nil value reports KindNull.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether the value is JSON null or absent.
func (v *Value) IsNull() bool {
	return v.Kind() == KindNull
}

func (v *Value) mismatch(want Kind) error {
	return &FieldError{
		Path: v.displayPath(),
		Err:  fmt.Errorf("%w: want %s, have %s", ErrTypeMismatch, want, v.Kind()),
	}
}

func (v *Value) displayPath() string {
	if v == nil || v.path == "" {
		return "$"
	}
	return v.path
}

// Has reports whether an object value holds key. It never fails.
func (v *Value) Has(key string) bool {
	if v.Kind() != KindObject {
		return false
	}
	_, ok := v.obj.fields[key]
	return ok
}

// Field returns the named field of an object value.
func (v *Value) Field(key string) (*Value, error) {
	if v.Kind() != KindObject {
		return nil, v.mismatch(KindObject)
	}
	f, ok := v.obj.fields[key]
	if !ok {
		return nil, &FieldError{Path: joinPath(v.displayPath(), key), Err: ErrFieldMissing}
	}
	return f, nil
}

// Lookup walks nested object fields.
func (v *Value) Lookup(keys ...string) (*Value, error) {
	cur := v
	for _, k := range keys {
		next, err := cur.Field(k)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Keys returns the field names of an object in document order.
func (v *Value) Keys() ([]string, error) {
	if v.Kind() != KindObject {
		return nil, v.mismatch(KindObject)
	}
	out := make([]string, len(v.obj.keys))
	copy(out, v.obj.keys)
	return out, nil
}

// Array returns the elements of an array value.
func (v *Value) Array() ([]*Value, error) {
	if v.Kind() != KindArray {
		return nil, v.mismatch(KindArray)
	}
	return v.arr, nil
}

// Text returns a string value. Numbers are returned as their literal text
// since report identifiers are sometimes emitted unquoted.
func (v *Value) Text() (string, error) {
	switch v.Kind() {
	case KindString:
		return v.str, nil
	case KindNumber:
		return v.num.String(), nil
	default:
		return "", v.mismatch(KindString)
	}
}

// Float returns a numeric value. Numeric strings are accepted.
func (v *Value) Float() (float64, error) {
	switch v.Kind() {
	case KindNumber:
		return v.num.Float64()
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, &FieldError{Path: v.displayPath(), Err: fmt.Errorf("%w: %q is not numeric", ErrTypeMismatch, v.str)}
		}
		return f, nil
	default:
		return 0, v.mismatch(KindNumber)
	}
}

// Bool returns a boolean value.
func (v *Value) Bool() (bool, error) {
	if v.Kind() != KindBool {
		return false, v.mismatch(KindBool)
	}
	return v.b, nil
}

// Path returns the location of the value within its document.
func (v *Value) Path() string {
	return v.displayPath()
}

// Interface converts the value to plain Go values (map[string]interface{},
// []interface{}, string, json.Number, bool, nil).
func (v *Value) Interface() interface{} {
	switch v.Kind() {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj.keys))
		for _, k := range v.obj.keys {
			out[k] = v.obj.fields[k].Interface()
		}
		return out
	default:
		return nil
	}
}

func joinPath(parent, key string) string {
	return parent + "." + key
}
