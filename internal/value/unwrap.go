// Package value converts opaque native attribute values read through
// an axport.AXPort into the closed model.AttributeValue sum (§4.2's
// value unwrapping algorithm), with a depth cap and a cycle guard.
package value

import (
	"fmt"
	"reflect"

	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/model"
)

const (
	// DefaultMaxDepth is the documented default recursion cap (§4.2).
	DefaultMaxDepth = 50

	sentinelMaxDepth = "<max_depth_reached>"
	sentinelCycle    = "<circular_reference>"
)

// Unwrapper turns raw native values into AttributeValue trees. A
// native element reference encountered mid-value (e.g. inside an
// AXUIElementArray-valued attribute) cannot become an AttributeValue
// itself — the sum has no element variant, by design, so it stays
// serializable on its own — so it is rendered as a short placeholder
// string instead of being recursed into as a handle.
type Unwrapper struct {
	port     axport.AXPort
	maxDepth int
}

func NewUnwrapper(port axport.AXPort, maxDepth int) *Unwrapper {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Unwrapper{port: port, maxDepth: maxDepth}
}

// Unwrap converts one raw native value, as returned by
// AXPort.CopyAttributeValue or CopyParameterizedAttributeValue.
func (u *Unwrapper) Unwrap(raw any) model.AttributeValue {
	seen := map[uintptr]bool{}
	return u.unwrap(raw, 0, seen)
}

func (u *Unwrapper) unwrap(raw any, depth int, seen map[uintptr]bool) model.AttributeValue {
	if depth > u.maxDepth {
		return model.String(sentinelMaxDepth)
	}

	if ptr, ok := identity(raw); ok {
		if seen[ptr] {
			return model.String(sentinelCycle)
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	switch v := raw.(type) {
	case nil:
		return model.Null()
	case model.AttributeValue:
		return v
	case string:
		return model.String(v)
	case bool:
		return model.Bool(v)
	case int:
		return model.Int(int64(v))
	case int32:
		return model.Int(int64(v))
	case int64:
		return model.Int(v)
	case float32:
		return numeric(float64(v))
	case float64:
		return numeric(v)
	case model.Point:
		return v.ToAttributeValue()
	case model.Size:
		return v.ToAttributeValue()
	case model.Rect:
		return v.ToAttributeValue()
	case model.TextRange:
		return v.ToAttributeValue()
	case []any:
		return u.unwrapList(v, depth, seen)
	case map[string]any:
		return u.unwrapMap(v, depth, seen)
	default:
		return u.unwrapOther(raw, depth)
	}
}

func numeric(f float64) model.AttributeValue {
	if float64(int64(f)) == f {
		return model.Int(int64(f))
	}
	return model.Double(f)
}

// identity returns a stable pointer identity for the native reference
// kinds capable of forming cycles (maps, slices, pointers); everything
// else has no notion of "the same object again" and is exempt.
func identity(v any) (uintptr, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Ptr, reflect.Slice, reflect.UnsafePointer, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	default:
		return 0, false
	}
}

func (u *Unwrapper) unwrapList(items []any, depth int, seen map[uintptr]bool) model.AttributeValue {
	out := make([]model.AttributeValue, len(items))
	for i, item := range items {
		out[i] = u.unwrap(item, depth+1, seen)
	}
	return model.List(out...)
}

func (u *Unwrapper) unwrapMap(m map[string]any, depth int, seen map[uintptr]bool) model.AttributeValue {
	out := make(map[string]model.AttributeValue, len(m))
	for k, v := range m {
		out[k] = u.unwrap(v, depth+1, seen)
	}
	return model.Map(out)
}

// unwrapOther handles native element references and any other
// debug-only value the platform may hand back.
func (u *Unwrapper) unwrapOther(raw any, depth int) model.AttributeValue {
	if _, isRef := raw.(axport.NativeRef); isRef && u.port != nil {
		return model.String(u.describeRef(raw))
	}
	return model.String(fmt.Sprintf("%v", raw))
}

// describeRef renders a short placeholder for a nested native element
// reference: "<element: Role>", falling back to a generic tag when
// the role itself cannot be read.
func (u *Unwrapper) describeRef(ref any) string {
	role, err := u.port.CopyAttributeValue(ref, "AXRole")
	if err != nil {
		return "<element>"
	}
	roleStr, _ := role.(string)
	if roleStr == "" {
		return "<element>"
	}
	return fmt.Sprintf("<element: %s>", roleStr)
}
