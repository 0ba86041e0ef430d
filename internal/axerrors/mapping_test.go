package axerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestKindCodeMapping exercises the closed Kind -> wire code table in §7:
// every declared Kind maps to exactly one code, and an unknown Kind
// falls back to "internal_error".
func TestKindCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		code string
	}{
		{KindAPIDisabled, "api_disabled"},
		{KindNotAuthorized, "permission_denied"},
		{KindInvalidCommand, "invalid_command"},
		{KindInvalidParameter, "invalid_parameter"},
		{KindApplicationNotFound, "application_not_found"},
		{KindElementNotFound, "element_not_found"},
		{KindInvalidElement, "invalid_element"},
		{KindAttributeUnsupported, "attribute_not_found"},
		{KindAttributeNotReadable, "attribute_not_found"},
		{KindAttributeNotSettable, "action_failed"},
		{KindTypeMismatch, "invalid_parameter"},
		{KindActionUnsupported, "action_not_supported"},
		{KindActionFailed, "action_failed"},
		{KindObservationFailed, "observation_failed"},
		{KindTokenNotFound, "observation_failed"},
		{KindBatchOperationFailed, "batch_operation_failed"},
		{KindTimeout, "timeout"},
		{KindInternal, "internal_error"},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.kind.Code(), "Kind %q", c.kind)
	}

	assert.Equal(t, "internal_error", Kind("bogus").Code())
}

// TestFromNativeCodeMapping exercises the native platform code -> Kind
// table required by §7/§8: each code maps to exactly one kind, and an
// unrecognized code maps to KindInternal.
func TestFromNativeCodeMapping(t *testing.T) {
	cases := []struct {
		code int
		kind Kind
	}{
		{NativeFailure, KindActionFailed},
		{NativeIllegalArgument, KindInvalidParameter},
		{NativeInvalidUIElement, KindInvalidElement},
		{NativeAttributeUnsupported, KindAttributeUnsupported},
		{NativeActionUnsupported, KindActionUnsupported},
		{NativeNotificationUnsupported, KindObservationFailed},
		{NativeNotEnoughPrecision, KindInternal},
		{NativeNotImplemented, KindActionUnsupported},
		{NativeCannotComplete, KindActionFailed},
		{NativeNoValue, KindAttributeNotReadable},
		{NativeParameterizedAttributeUnsupported, KindAttributeUnsupported},
		{NativeNotEnoughBuffers, KindInternal},
		{NativeAPIDisabled, KindAPIDisabled},
		{NativeNotAuthorized, KindNotAuthorized},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, FromNativeCode(c.code), "native code %d", c.code)
	}

	assert.Equal(t, Kind(""), FromNativeCode(NativeSuccess))
	assert.Equal(t, KindInternal, FromNativeCode(-999999))
}
