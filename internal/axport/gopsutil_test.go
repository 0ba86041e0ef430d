package axport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessEnumeratorRunningApplicationsReturnsRealProcesses(t *testing.T) {
	backend := NewFakeAXPort()
	enumerator := NewProcessEnumerator(backend)

	apps, err := enumerator.RunningApplications()
	require.NoError(t, err)
	assert.NotEmpty(t, apps, "expected at least this test process to be enumerated")
	for _, app := range apps {
		assert.NotZero(t, app.PID)
	}
}

func TestProcessEnumeratorFrontmostApplicationReportsUnknown(t *testing.T) {
	enumerator := NewProcessEnumerator(NewFakeAXPort())

	app, ok, err := enumerator.FrontmostApplication()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, app)
}

func TestProcessEnumeratorDelegatesElementAccessToBackend(t *testing.T) {
	backend := NewFakeAXPort()
	app := NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	backend.AddApp(AppInfo{PID: 101}, app)

	enumerator := NewProcessEnumerator(backend)

	ref, err := enumerator.ApplicationElement(101)
	require.NoError(t, err)
	assert.Equal(t, app, ref)
}
