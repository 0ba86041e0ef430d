package axerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesContext(t *testing.T) {
	err := New(KindElementNotFound, "locator.find", "no match").
		WithElement("Role: AXButton, PID: 1").
		WithAttribute("AXPress")

	msg := err.Error()
	assert.Contains(t, msg, "locator.find failed")
	assert.Contains(t, msg, "Role: AXButton, PID: 1")
	assert.Contains(t, msg, "AXPress")
	assert.Contains(t, msg, "no match")
}

func TestErrorSanitizesControlCharacters(t *testing.T) {
	err := New(KindInvalidElement, "element.op", "bad\nvalue\r\nhere\tend").
		WithElement("evil\ntitle")

	msg := err.Error()
	assert.NotContains(t, msg, "\n")
	assert.NotContains(t, msg, "\r")
	assert.NotContains(t, msg, "\t")
}

func TestWrapPreservesUnwrap(t *testing.T) {
	cause := errors.New("native failure")
	err := Wrap(cause, KindActionFailed, "element.performAction")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindActionFailed, err.Kind)
}

func TestWithNativeCodeAttachesCode(t *testing.T) {
	err := New(KindActionFailed, "element.performAction", "failed").WithNativeCode(NativeCannotComplete)
	assert.Equal(t, NativeCannotComplete, err.NativeCode)
}
