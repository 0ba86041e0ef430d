package element

import (
	"testing"

	"github.com/corvidlabs/axengine/internal/axerrors"
	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandle(t *testing.T, port *axport.FakeAXPort, el *axport.FakeElement, pid int) *Handle {
	t.Helper()
	return New(port, el, pid, value.NewUnwrapper(port, value.DefaultMaxDepth))
}

func TestBasicAttributeAccess(t *testing.T) {
	port := axport.NewFakeAXPort()
	el := axport.NewFakeElement(101, map[string]any{
		"AXRole":     "AXTextField",
		"AXTitle":    "Search",
		"AXValue":    "hello",
		"AXEnabled":  true,
		"AXIdentifier": "search-field",
	}, "AXPress")

	h := newHandle(t, port, el, 101)

	role, ok := h.Role()
	require.True(t, ok)
	assert.Equal(t, "AXTextField", role)

	title, ok := h.Title()
	require.True(t, ok)
	assert.Equal(t, "Search", title)

	enabled, ok := h.IsEnabled()
	require.True(t, ok)
	assert.True(t, enabled)

	_, ok = h.Attribute("AXHelp")
	assert.False(t, ok)
}

func TestBriefDescriptionSmart(t *testing.T) {
	port := axport.NewFakeAXPort()
	el := axport.NewFakeElement(101, map[string]any{
		"AXRole":       "AXTextField",
		"AXTitle":      "Search",
		"AXIdentifier": "search-field",
	})
	h := newHandle(t, port, el, 101)

	got := h.BriefDescription(FormatSmart)
	assert.Equal(t, "Role: AXTextField, PID: 101, Title: 'Search', ID: 'search-field'", got)
}

func TestPerformActionUnsupported(t *testing.T) {
	port := axport.NewFakeAXPort()
	el := axport.NewFakeElement(101, map[string]any{"AXRole": "AXStaticText"})
	h := newHandle(t, port, el, 101)

	err := h.PerformAction("AXPress")
	require.NotNil(t, err)
	assert.Equal(t, "ActionUnsupported", string(err.Kind))
}

func TestPerformActionSuccess(t *testing.T) {
	port := axport.NewFakeAXPort()
	el := axport.NewFakeElement(101, map[string]any{"AXRole": "AXButton"}, "AXPress")
	h := newHandle(t, port, el, 101)

	err := h.PerformAction("AXPress")
	assert.Nil(t, err)
}

func TestPerformActionMapsNativeCode(t *testing.T) {
	port := axport.NewFakeAXPort()
	el := axport.NewFakeElement(101, map[string]any{"AXRole": "AXButton"}, "AXPress")
	el.ActionErrs["AXPress"] = axport.ErrNativeCode{Code: axerrors.NativeCannotComplete, Msg: "cannot complete"}
	h := newHandle(t, port, el, 101)

	err := h.PerformAction("AXPress")
	require.NotNil(t, err)
	assert.Equal(t, axerrors.KindActionFailed, err.Kind)
	assert.Equal(t, axerrors.NativeCannotComplete, err.NativeCode)
}

func TestBriefDescriptionSmartIncludesDOMId(t *testing.T) {
	port := axport.NewFakeAXPort()
	el := axport.NewFakeElement(101, map[string]any{
		"AXRole":          "AXTextField",
		"AXTitle":         "Search",
		"AXIdentifier":    "search-field",
		"AXDOMIdentifier": "search-input",
	})
	h := newHandle(t, port, el, 101)

	got := h.BriefDescription(FormatSmart)
	assert.Equal(t, "Role: AXTextField, PID: 101, Title: 'Search', ID: 'search-field', DOMId: 'search-input'", got)
}

func TestChildrenAndParent(t *testing.T) {
	port := axport.NewFakeAXPort()
	root := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	child := axport.NewFakeElement(101, map[string]any{"AXRole": "AXWindow"})
	root.AddChild(child)

	rootHandle := newHandle(t, port, root, 101)
	children, ok := rootHandle.Children()
	require.True(t, ok)
	require.Len(t, children, 1)
	assert.True(t, children[0].IsWindow())

	parent, ok := children[0].Parent()
	require.True(t, ok)
	role, _ := parent.Role()
	assert.Equal(t, "AXApplication", role)
}

func TestGeneratePathSegments(t *testing.T) {
	port := axport.NewFakeAXPort()
	app := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	window := axport.NewFakeElement(101, map[string]any{"AXRole": "AXWindow"})
	button := axport.NewFakeElement(101, map[string]any{"AXRole": "AXButton", "AXTitle": "OK"})
	app.AddChild(window)
	window.AddChild(button)

	h := newHandle(t, port, button, 101)
	segments := h.GeneratePathSegments(nil)
	require.Len(t, segments, 3)
	assert.Contains(t, segments[0], "AXApplication")
	assert.Contains(t, segments[2], "AXButton")
}

func TestIsInteractive(t *testing.T) {
	port := axport.NewFakeAXPort()
	disabled := axport.NewFakeElement(101, map[string]any{"AXRole": "AXButton", "AXEnabled": false})
	h := newHandle(t, port, disabled, 101)
	assert.False(t, h.IsInteractive())

	enabled := axport.NewFakeElement(101, map[string]any{"AXRole": "AXButton", "AXEnabled": true})
	h2 := newHandle(t, port, enabled, 101)
	assert.True(t, h2.IsInteractive())
}
