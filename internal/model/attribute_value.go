package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tags the variant held by an AttributeValue.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindList
	KindMap
)

// AttributeValue is the closed, recursively-containable sum type used
// everywhere a native AX value must cross the wire: null, bool, int,
// double, string, list[AttributeValue], map[string]AttributeValue.
// It is immutable once constructed; every constructor returns a fresh
// value, never a shared pointer into caller-owned memory.
type AttributeValue struct {
	kind ValueKind
	b    bool
	i    int64
	d    float64
	s    string
	list []AttributeValue
	m    map[string]AttributeValue
}

func Null() AttributeValue                  { return AttributeValue{kind: KindNull} }
func Bool(v bool) AttributeValue             { return AttributeValue{kind: KindBool, b: v} }
func Int(v int64) AttributeValue             { return AttributeValue{kind: KindInt, i: v} }
func Double(v float64) AttributeValue        { return AttributeValue{kind: KindDouble, d: v} }
func String(v string) AttributeValue         { return AttributeValue{kind: KindString, s: v} }

func List(items ...AttributeValue) AttributeValue {
	cp := make([]AttributeValue, len(items))
	copy(cp, items)
	return AttributeValue{kind: KindList, list: cp}
}

func Map(m map[string]AttributeValue) AttributeValue {
	cp := make(map[string]AttributeValue, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return AttributeValue{kind: KindMap, m: cp}
}

func (v AttributeValue) Kind() ValueKind { return v.kind }
func (v AttributeValue) IsNull() bool    { return v.kind == KindNull }

func (v AttributeValue) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v AttributeValue) AsInt() (int64, bool)      { return v.i, v.kind == KindInt }
func (v AttributeValue) AsDouble() (float64, bool) { return v.d, v.kind == KindDouble }
func (v AttributeValue) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v AttributeValue) AsList() ([]AttributeValue, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}
func (v AttributeValue) AsMap() (map[string]AttributeValue, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// StringValue coerces a scalar AttributeValue into its string form,
// used by computed-name resolution and text extraction. Non-scalars
// return ("", false).
func (v AttributeValue) StringValue() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindBool:
		return fmt.Sprintf("%t", v.b), true
	case KindInt:
		return fmt.Sprintf("%d", v.i), true
	case KindDouble:
		return fmt.Sprintf("%g", v.d), true
	default:
		return "", false
	}
}

// MarshalJSON encodes the natural JSON scalar/array/object per §6's
// wire rules; this is the hand-written coding the design notes call
// for instead of a generic AnyCodable/reflection-based encoder.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindDouble:
		return json.Marshal(v.d)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		return json.Marshal(v.list)
	case KindMap:
		return json.Marshal(v.m)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes an arbitrary JSON scalar/array/object into the
// matching AttributeValue variant. Integral JSON numbers become
// KindInt; fractional ones become KindDouble.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	if bytes.Equal(data, []byte("true")) {
		*v = Bool(true)
		return nil
	}
	if bytes.Equal(data, []byte("false")) {
		*v = Bool(false)
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]AttributeValue, len(raw))
		for i, r := range raw {
			if err := items[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
		*v = List(items...)
		return nil
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		m := make(map[string]AttributeValue, len(raw))
		for k, r := range raw {
			var item AttributeValue
			if err := item.UnmarshalJSON(r); err != nil {
				return err
			}
			m[k] = item
		}
		*v = Map(m)
		return nil
	default:
		// Number: integral vs fractional.
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if float64(int64(f)) == f {
			*v = Int(int64(f))
		} else {
			*v = Double(f)
		}
		return nil
	}
}
