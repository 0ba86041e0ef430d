package observer

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/model"
)

func startCenter(t *testing.T, port *axport.FakeAXPort) *Center {
	t.Helper()
	c := New(port, zerolog.Nop())
	go c.Run()
	t.Cleanup(c.Stop)
	return c
}

func TestSubscribeSingleNativeRegistration(t *testing.T) {
	port := axport.NewFakeAXPort()
	app := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	port.AddApp(axport.AppInfo{PID: 101}, app)
	c := startCenter(t, port)

	pid := 101
	var mu sync.Mutex
	count := 0
	for i := 0; i < 3; i++ {
		_, err := c.Subscribe(&pid, nil, "AXValueChanged", func(pid int, notification, brief string, info map[string]model.AttributeValue) {
			mu.Lock()
			count++
			mu.Unlock()
		})
		require.Nil(t, err)
	}

	assert.Equal(t, 1, port.CreateObserverCalls)
	assert.Equal(t, 1, port.AddNotificationCalls)

	port.Fire(101, app, "AXValueChanged", nil)
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 3 })
}

func TestUnsubscribeTearsDownOnLastHandler(t *testing.T) {
	port := axport.NewFakeAXPort()
	app := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	port.AddApp(axport.AppInfo{PID: 101}, app)
	c := startCenter(t, port)

	pid := 101
	var tokens []SubscriptionToken
	for i := 0; i < 2; i++ {
		tok, err := c.Subscribe(&pid, nil, "AXFocusedUIElementChanged", func(int, string, string, map[string]model.AttributeValue) {})
		require.Nil(t, err)
		tokens = append(tokens, tok)
	}

	require.Nil(t, c.Unsubscribe(tokens[0]))
	assert.Equal(t, 0, port.RemoveNotificationCalls)
	assert.Equal(t, 0, port.DestroyObserverCalls)

	require.Nil(t, c.Unsubscribe(tokens[1]))
	assert.Equal(t, 1, port.RemoveNotificationCalls)
	assert.Equal(t, 1, port.DestroyObserverCalls)
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	port := axport.NewFakeAXPort()
	c := startCenter(t, port)

	err := c.Unsubscribe("not-a-real-token")
	require.NotNil(t, err)
	assert.Equal(t, "TokenNotFound", string(err.Kind))
}

func TestGlobalAndSpecificBothFire(t *testing.T) {
	port := axport.NewFakeAXPort()
	app := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	port.AddApp(axport.AppInfo{PID: 101}, app)
	c := startCenter(t, port)

	pid := 101
	var mu sync.Mutex
	var calls []string

	_, err := c.Subscribe(&pid, nil, "AXWindowCreated", func(int, string, string, map[string]model.AttributeValue) {
		mu.Lock()
		calls = append(calls, "specific")
		mu.Unlock()
	})
	require.Nil(t, err)

	_, err = c.Subscribe(nil, nil, "AXWindowCreated", func(int, string, string, map[string]model.AttributeValue) {
		mu.Lock()
		calls = append(calls, "global")
		mu.Unlock()
	})
	require.Nil(t, err)

	port.Fire(101, app, "AXWindowCreated", nil)
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(calls) == 2 })
}

func TestIsRegistered(t *testing.T) {
	port := axport.NewFakeAXPort()
	app := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	port.AddApp(axport.AppInfo{PID: 101}, app)
	c := startCenter(t, port)

	pid := 101
	assert.False(t, c.IsRegistered(&pid, "AXUIElementDestroyed"))
	_, err := c.Subscribe(&pid, nil, "AXUIElementDestroyed", func(int, string, string, map[string]model.AttributeValue) {})
	require.Nil(t, err)
	assert.True(t, c.IsRegistered(&pid, "AXUIElementDestroyed"))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
