package axerrors

// Native platform error codes. These mirror the small closed set an
// AXPort implementation reports (success, generic failure, illegal
// argument, invalid UI element, attribute/action unsupported, no
// value, not implemented, API disabled, not authorized, cannot
// complete). The exact integers are implementation-defined by the
// AXPort the engine is wired to; FakeAXPort in internal/axport uses
// these for its tests.
const (
	NativeSuccess              = 0
	NativeFailure              = -25200
	NativeIllegalArgument      = -25201
	NativeInvalidUIElement     = -25202
	NativeAttributeUnsupported = -25205
	NativeActionUnsupported    = -25206
	NativeNotificationUnsupported = -25207
	NativeNotEnoughPrecision   = -25208
	NativeNotImplemented       = -25209
	NativeCannotComplete       = -25204
	NativeNoValue              = -25212
	NativeParameterizedAttributeUnsupported = -25213
	NativeNotEnoughBuffers     = -25214
	NativeAPIDisabled          = -25211
	NativeNotAuthorized        = -25222
)

// mapping is the fixed native-code → Kind table required by §7's
// testable property "each platform error code maps to exactly one
// kind". It is consulted by FromNativeCode; anything absent maps to
// KindInternal.
var mapping = map[int]Kind{
	NativeSuccess:                  "",
	NativeFailure:                  KindActionFailed,
	NativeIllegalArgument:          KindInvalidParameter,
	NativeInvalidUIElement:         KindInvalidElement,
	NativeAttributeUnsupported:     KindAttributeUnsupported,
	NativeActionUnsupported:        KindActionUnsupported,
	NativeNotificationUnsupported:  KindObservationFailed,
	NativeNotEnoughPrecision:       KindInternal,
	NativeNotImplemented:           KindActionUnsupported,
	NativeCannotComplete:           KindActionFailed,
	NativeNoValue:                  KindAttributeNotReadable,
	NativeParameterizedAttributeUnsupported: KindAttributeUnsupported,
	NativeNotEnoughBuffers:         KindInternal,
	NativeAPIDisabled:              KindAPIDisabled,
	NativeNotAuthorized:            KindNotAuthorized,
}

// FromNativeCode maps a platform error code to its taxonomy Kind. A
// code this table has never seen maps to KindInternal, per §7's
// Internal row ("unexpected platform code or invariant break").
func FromNativeCode(code int) Kind {
	if k, ok := mapping[code]; ok && k != "" {
		return k
	}
	if code == NativeSuccess {
		return ""
	}
	return KindInternal
}
