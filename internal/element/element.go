// Package element implements ElementHandle (§4.2): a thin value-like
// wrapper over a native AX element reference, with typed attribute
// access, action invocation, tree traversal, and description/path
// generation.
package element

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/corvidlabs/axengine/internal/axerrors"
	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/model"
	"github.com/corvidlabs/axengine/internal/value"
)

// Native attribute name constants used throughout this package and by
// callers building locators and collect-all attribute lists.
const (
	AttrRole        = "AXRole"
	AttrSubrole     = "AXSubrole"
	AttrTitle       = "AXTitle"
	AttrValue       = "AXValue"
	AttrDescription = "AXDescription"
	AttrHelp        = "AXHelp"
	AttrIdentifier  = "AXIdentifier"
	AttrEnabled     = "AXEnabled"
	AttrFocused     = "AXFocused"
	AttrHidden      = "AXHidden"
	AttrParent      = "AXParent"
	AttrChildren    = "AXChildren"
	AttrWindows     = "AXWindows"
	AttrPlaceholder = "AXPlaceholderValue"
	AttrDOMId       = "AXDOMIdentifier"

	AttrFocusedUIElement = "AXFocusedUIElement"
)

// FormatOption selects BriefDescription's rendering mode (§4.2).
type FormatOption string

const (
	FormatSmart       FormatOption = "smart"
	FormatRaw         FormatOption = "raw"
	FormatTextContent FormatOption = "text_content"
	FormatStringified FormatOption = "stringified"
)

// DefaultMaxPathDepth bounds generate_path's parent-chain walk (§4.2, §8).
const DefaultMaxPathDepth = 25

const pathDepthSentinel = "<...max_depth_reached...>"

// Handle wraps a native element reference. It is value-like: copying
// a Handle copies the reference, never the underlying element: the
// platform reference-counts the native side.
type Handle struct {
	port      axport.AXPort
	ref       axport.NativeRef
	pid       int
	unwrapper *value.Unwrapper
}

// New wraps ref, owned by the application with the given pid.
func New(port axport.AXPort, ref axport.NativeRef, pid int, unwrapper *value.Unwrapper) *Handle {
	return &Handle{port: port, ref: ref, pid: pid, unwrapper: unwrapper}
}

func (h *Handle) Ref() axport.NativeRef { return h.ref }
func (h *Handle) PID() int              { return h.pid }

// RawAttribute reads name and unwraps it, distinguishing "element does
// not expose this attribute at all" from "attribute exists but has no
// value right now" per §7's AttributeUnsupported vs AttributeNotReadable.
func (h *Handle) RawAttribute(name string) (model.AttributeValue, *axerrors.Error) {
	raw, err := h.port.CopyAttributeValue(h.ref, name)
	if err == nil {
		return h.unwrapper.Unwrap(raw), nil
	}

	var noValue axport.ErrNoValue
	if errors.As(err, &noValue) {
		return model.Null(), axerrors.New(axerrors.KindAttributeNotReadable, "element.attribute", err.Error()).
			WithElement(h.briefRaw()).WithAttribute(name)
	}

	if names, nameErr := h.port.AttributeNames(h.ref); nameErr == nil && !containsString(names, name) {
		return model.Null(), axerrors.New(axerrors.KindAttributeUnsupported, "element.attribute", err.Error()).
			WithElement(h.briefRaw()).WithAttribute(name)
	}

	kind, code := kindForError(err, axerrors.KindInternal)
	return model.Null(), axerrors.Wrap(err, kind, "element.attribute").
		WithElement(h.briefRaw()).WithAttribute(name).WithNativeCode(code)
}

// kindForError maps err's platform code through axerrors.FromNativeCode
// when err carries one (axport.ErrNativeCode), falling back to kind
// otherwise. The second return is the raw code, 0 when absent.
func kindForError(err error, fallback axerrors.Kind) (axerrors.Kind, int) {
	var native axport.ErrNativeCode
	if errors.As(err, &native) {
		if mapped := axerrors.FromNativeCode(native.Code); mapped != "" {
			return mapped, native.Code
		}
	}
	return fallback, 0
}

// Attribute reads name and returns it, or (zero, false) on absence or
// type mismatch, matching the public contract's Optional-returning
// getters.
func (h *Handle) Attribute(name string) (model.AttributeValue, bool) {
	v, err := h.RawAttribute(name)
	if err != nil {
		return model.AttributeValue{}, false
	}
	return v, true
}

func (h *Handle) stringAttr(name string) (string, bool) {
	v, ok := h.Attribute(name)
	if !ok {
		return "", false
	}
	return v.StringValue()
}

func (h *Handle) boolAttr(name string) (bool, bool) {
	v, ok := h.Attribute(name)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

func (h *Handle) Role() (string, bool)            { return h.stringAttr(AttrRole) }
func (h *Handle) Subrole() (string, bool)         { return h.stringAttr(AttrSubrole) }
func (h *Handle) Title() (string, bool)           { return h.stringAttr(AttrTitle) }
func (h *Handle) DescriptionText() (string, bool) { return h.stringAttr(AttrDescription) }
func (h *Handle) Identifier() (string, bool)       { return h.stringAttr(AttrIdentifier) }
func (h *Handle) Help() (string, bool)             { return h.stringAttr(AttrHelp) }
func (h *Handle) Placeholder() (string, bool)      { return h.stringAttr(AttrPlaceholder) }
func (h *Handle) DOMId() (string, bool)            { return h.stringAttr(AttrDOMId) }

func (h *Handle) Value() (model.AttributeValue, bool) { return h.Attribute(AttrValue) }

func (h *Handle) IsEnabled() (bool, bool) { return h.boolAttr(AttrEnabled) }
func (h *Handle) IsFocused() (bool, bool) { return h.boolAttr(AttrFocused) }
func (h *Handle) IsHidden() (bool, bool)  { return h.boolAttr(AttrHidden) }

// SetValue writes name, succeeding iff the platform reports success.
func (h *Handle) SetValue(name string, v model.AttributeValue) *axerrors.Error {
	native, err := toNative(v)
	if err != nil {
		return axerrors.New(axerrors.KindTypeMismatch, "element.setValue", err.Error()).
			WithElement(h.briefRaw()).WithAttribute(name)
	}
	if err := h.port.SetAttributeValue(h.ref, name, native); err != nil {
		kind, code := kindForError(err, axerrors.KindAttributeNotSettable)
		return axerrors.Wrap(err, kind, "element.setValue").
			WithElement(h.briefRaw()).WithAttribute(name).WithNativeCode(code)
	}
	return nil
}

func toNative(v model.AttributeValue) (any, error) {
	switch v.Kind() {
	case model.KindNull:
		return nil, nil
	case model.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case model.KindInt:
		i, _ := v.AsInt()
		return i, nil
	case model.KindDouble:
		d, _ := v.AsDouble()
		return d, nil
	case model.KindString:
		s, _ := v.AsString()
		return s, nil
	default:
		return nil, fmt.Errorf("element: cannot write a %v-valued attribute to the platform", v.Kind())
	}
}

// SupportedAttributeNames lists every attribute name the element
// reports via AXPort.AttributeNames.
func (h *Handle) SupportedAttributeNames() ([]string, bool) {
	names, err := h.port.AttributeNames(h.ref)
	if err != nil {
		return nil, false
	}
	return names, true
}

// SupportedActions lists every action name the element reports.
func (h *Handle) SupportedActions() ([]string, bool) {
	names, err := h.port.ActionNames(h.ref)
	if err != nil {
		return nil, false
	}
	return names, true
}

// IsActionSupported reports whether name appears in SupportedActions.
func (h *Handle) IsActionSupported(name string) bool {
	names, ok := h.SupportedActions()
	return ok && containsString(names, name)
}

// PerformAction invokes name, mapping platform errors into the
// taxonomy (§7): ActionUnsupported if the element never listed it; a
// platform error carrying a native code maps through FromNativeCode,
// any other failure is ActionFailed.
func (h *Handle) PerformAction(name string) *axerrors.Error {
	if !h.IsActionSupported(name) {
		return axerrors.New(axerrors.KindActionUnsupported, "element.performAction", "action not supported").
			WithElement(h.briefRaw()).WithAttribute(name)
	}
	if err := h.port.PerformAction(h.ref, name); err != nil {
		kind, code := kindForError(err, axerrors.KindActionFailed)
		return axerrors.Wrap(err, kind, "element.performAction").
			WithElement(h.briefRaw()).WithAttribute(name).WithNativeCode(code)
	}
	return nil
}

// Parent returns the element's parent, or (nil, false) at the root.
func (h *Handle) Parent() (*Handle, bool) {
	raw, err := h.port.CopyAttributeValue(h.ref, AttrParent)
	if err != nil || raw == nil {
		return nil, false
	}
	ref, ok := raw.(axport.NativeRef)
	if !ok {
		return nil, false
	}
	return New(h.port, ref, h.pid, h.unwrapper), true
}

// Children returns direct children in platform-reported order.
func (h *Handle) Children() ([]*Handle, bool) {
	raw, err := h.port.CopyAttributeValue(h.ref, AttrChildren)
	if err != nil {
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]*Handle, 0, len(items))
	for _, it := range items {
		ref, ok := it.(axport.NativeRef)
		if !ok {
			continue
		}
		out = append(out, New(h.port, ref, h.pid, h.unwrapper))
	}
	return out, true
}

// FocusedUIElement returns the focused descendant, if any.
func (h *Handle) FocusedUIElement() (*Handle, bool) {
	raw, err := h.port.CopyAttributeValue(h.ref, AttrFocusedUIElement)
	if err != nil || raw == nil {
		return nil, false
	}
	ref, ok := raw.(axport.NativeRef)
	if !ok {
		return nil, false
	}
	return New(h.port, ref, h.pid, h.unwrapper), true
}

// Windows returns the element's window list, if it exposes one.
func (h *Handle) Windows() ([]*Handle, bool) {
	raw, err := h.port.CopyAttributeValue(h.ref, AttrWindows)
	if err != nil {
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]*Handle, 0, len(items))
	for _, it := range items {
		ref, ok := it.(axport.NativeRef)
		if !ok {
			continue
		}
		out = append(out, New(h.port, ref, h.pid, h.unwrapper))
	}
	return out, true
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// briefRaw renders Smart format, swallowing its own errors — used
// internally to annotate error contexts without risking a recursive
// failure.
func (h *Handle) briefRaw() string {
	return h.BriefDescription(FormatSmart)
}

// BriefDescription renders one line describing the element (§4.2).
func (h *Handle) BriefDescription(format FormatOption) string {
	role, _ := h.Role()
	if role == "" {
		role = "Unknown"
	}

	switch format {
	case FormatRaw:
		return role
	case FormatTextContent:
		if text, ok := h.directText(); ok {
			return text
		}
		return role
	case FormatStringified:
		base := h.smart(role)
		if v, ok := h.Value(); ok {
			if s, ok := v.StringValue(); ok && s != "" {
				base += fmt.Sprintf(", Value: '%s'", s)
			}
		}
		if help, ok := h.Help(); ok && help != "" {
			base += fmt.Sprintf(", Help: '%s'", help)
		}
		return base
	default: // FormatSmart
		return h.smart(role)
	}
}

func (h *Handle) smart(role string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s, PID: %d", role, h.pid)
	if title, ok := h.Title(); ok && title != "" {
		fmt.Fprintf(&b, ", Title: '%s'", title)
	}
	if id, ok := h.Identifier(); ok && id != "" {
		fmt.Fprintf(&b, ", ID: '%s'", id)
	}
	if domID, ok := h.DOMId(); ok && domID != "" {
		fmt.Fprintf(&b, ", DOMId: '%s'", domID)
	}
	return b.String()
}

func (h *Handle) directText() (string, bool) {
	if title, ok := h.Title(); ok && title != "" {
		return title, true
	}
	if v, ok := h.Value(); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			return s, true
		}
	}
	if d, ok := h.DescriptionText(); ok && d != "" {
		return d, true
	}
	if p, ok := h.Placeholder(); ok && p != "" {
		return p, true
	}
	return "", false
}

// GeneratePath renders the parent chain as a single " / "-joined string.
func (h *Handle) GeneratePath(upto *Handle) string {
	return strings.Join(h.GeneratePathSegments(upto), " / ")
}

// GeneratePathSegments walks the parent chain from h to the
// application root (or upto, if given), appending each ancestor's
// brief description, then reverses to root-first order. A hard depth
// cap (default 25) inserts pathDepthSentinel and stops if exceeded.
func (h *Handle) GeneratePathSegments(upto *Handle) []string {
	segments := []string{h.BriefDescription(FormatSmart)}
	current := h
	depth := 0
	for {
		if upto != nil && sameRef(current.ref, upto.ref) {
			break
		}
		parent, ok := current.Parent()
		if !ok {
			break
		}
		depth++
		if depth > DefaultMaxPathDepth {
			segments = append(segments, pathDepthSentinel)
			break
		}
		segments = append(segments, parent.BriefDescription(FormatSmart))
		if role, _ := parent.Role(); role == "AXApplication" {
			break
		}
		current = parent
	}
	reverse(segments)
	return segments
}

func sameRef(a, b axport.NativeRef) bool {
	return a == b
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Dump renders every available attribute and parameterized-attribute
// name with a shallow value, for diagnostics.
func (h *Handle) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", h.BriefDescription(FormatStringified))

	names, _ := h.port.AttributeNames(h.ref)
	sort.Strings(names)
	for _, name := range names {
		v, err := h.RawAttribute(name)
		if err != nil {
			fmt.Fprintf(&b, "  %s: <error: %s>\n", name, err.Error())
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", name, shallowString(v))
	}

	paramNames, _ := h.port.ParameterizedAttributeNames(h.ref)
	sort.Strings(paramNames)
	for _, name := range paramNames {
		fmt.Fprintf(&b, "  %s(param): <parameterized>\n", name)
	}

	actions, _ := h.SupportedActions()
	sort.Strings(actions)
	fmt.Fprintf(&b, "  actions: %s\n", strings.Join(actions, ", "))
	return b.String()
}

func shallowString(v model.AttributeValue) string {
	if s, ok := v.StringValue(); ok {
		return s
	}
	switch v.Kind() {
	case model.KindList:
		items, _ := v.AsList()
		return fmt.Sprintf("<list of %d>", len(items))
	case model.KindMap:
		m, _ := v.AsMap()
		return fmt.Sprintf("<map of %d>", len(m))
	case model.KindNull:
		return "null"
	default:
		return "<unknown>"
	}
}
