package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AttrKind discriminates the value types an attribute can hold.
type AttrKind uint8

const (
	AttrString AttrKind = iota
	AttrNumber
	AttrBool
	AttrList
)

// AttrValue is a discriminated attribute value: string, number, bool, or
// list of strings. The zero value is an empty string.
type AttrValue struct {
	kind AttrKind
	str  string
	num  float64
	b    bool
	list []string
}

// String creates a string attribute value.
func String(s string) AttrValue { return AttrValue{kind: AttrString, str: s} }

// Number creates a numeric attribute value.
func Number(f float64) AttrValue { return AttrValue{kind: AttrNumber, num: f} }

// Bool creates a boolean attribute value.
func Bool(b bool) AttrValue { return AttrValue{kind: AttrBool, b: b} }

// List creates a list-of-strings attribute value.
func List(items ...string) AttrValue { return AttrValue{kind: AttrList, list: items} }

// Kind returns the value discriminator.
func (v AttrValue) Kind() AttrKind { return v.kind }

// Str returns the string value, or "" if the kind differs.
func (v AttrValue) Str() string {
	if v.kind != AttrString {
		return ""
	}
	return v.str
}

// Num returns the numeric value, or 0 if the kind differs.
func (v AttrValue) Num() float64 {
	if v.kind != AttrNumber {
		return 0
	}
	return v.num
}

// Truth returns the boolean value, or false if the kind differs.
func (v AttrValue) Truth() bool {
	if v.kind != AttrBool {
		return false
	}
	return v.b
}

// Items returns the list value, or nil if the kind differs.
func (v AttrValue) Items() []string {
	if v.kind != AttrList {
		return nil
	}
	return v.list
}

// MarshalJSON encodes the underlying value without a type wrapper.
func (v AttrValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AttrNumber:
		return json.Marshal(v.num)
	case AttrBool:
		return json.Marshal(v.b)
	case AttrList:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON infers the kind from the JSON token type.
func (v *AttrValue) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case string:
		*v = String(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("attribute number %q: %w", t.String(), err)
		}
		*v = Number(f)
	case bool:
		*v = Bool(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return fmt.Errorf("attribute list element %v: expected string", it)
			}
			items = append(items, s)
		}
		*v = List(items...)
	case nil:
		*v = AttrValue{}
	default:
		return fmt.Errorf("unsupported attribute value %v", raw)
	}
	return nil
}

// Attributes is an open key/value mapping describing a record.
type Attributes map[string]AttrValue

// Str returns the string attribute for key and whether it was present
// with that kind.
func (a Attributes) Str(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v.kind != AttrString {
		return "", false
	}
	return v.str, true
}

// Num returns the numeric attribute for key and whether it was present
// with that kind.
func (a Attributes) Num(key string) (float64, bool) {
	v, ok := a[key]
	if !ok || v.kind != AttrNumber {
		return 0, false
	}
	return v.num, true
}

// Items returns the list attribute for key and whether it was present
// with that kind.
func (a Attributes) Items(key string) ([]string, bool) {
	v, ok := a[key]
	if !ok || v.kind != AttrList {
		return nil, false
	}
	return v.list, true
}

// Clone returns a shallow copy of the mapping.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}
