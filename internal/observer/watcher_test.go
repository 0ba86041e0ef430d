package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/model"
)

func TestWatcherStopIsIdempotent(t *testing.T) {
	port := axport.NewFakeAXPort()
	app := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	port.AddApp(axport.AppInfo{PID: 101}, app)
	c := startCenter(t, port)

	pid := 101
	w, err := NewWatcher(c, &pid, nil, "AXWindowMiniaturized", func(int, string, string, map[string]model.AttributeValue) {})
	require.Nil(t, err)

	w.Stop()
	w.Stop()

	assert.Equal(t, 1, port.RemoveNotificationCalls)
	assert.Equal(t, 1, port.DestroyObserverCalls)
}
