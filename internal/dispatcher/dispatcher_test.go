package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/locator"
	"github.com/corvidlabs/axengine/internal/model"
	"github.com/corvidlabs/axengine/internal/observer"
	"github.com/corvidlabs/axengine/internal/resolver"
	"github.com/corvidlabs/axengine/internal/value"
)

func buildFixture() (*axport.FakeAXPort, *axport.FakeElement) {
	port := axport.NewFakeAXPort()
	window := axport.NewFakeElement(100, map[string]any{"AXRole": "AXWindow", "AXTitle": "Main"})
	button := axport.NewFakeElement(100, map[string]any{"AXRole": "AXButton", "AXTitle": "Save", "AXEnabled": true})
	window.AddChild(button)
	button.Actions = map[string]bool{"AXPress": true}
	port.AddApp(axport.AppInfo{PID: 100, BundleID: "com.example.app", Name: "Example", Frontmost: true}, window)
	return port, button
}

func newDispatcher(port *axport.FakeAXPort) *Dispatcher {
	log := zerolog.Nop()
	res := resolver.New(port, resolver.BundlePolicy{}, log)
	unwrap := value.NewUnwrapper(port, value.DefaultMaxDepth)
	loc := locator.New(port, res, unwrap, log)
	center := observer.New(port, log)
	go center.Run()
	return New(port, res, loc, center, unwrap, log, nil, nil)
}

func queryEnvelope(appID string, criteria []model.Criterion) model.CommandEnvelope {
	return model.CommandEnvelope{
		CommandID: "cmd-1",
		Command: model.Command{
			Type: model.CmdQuery,
			Query: &model.QueryCommand{
				AppIdentifier: appID,
				Locator:       model.Locator{Criteria: criteria},
				MaxDepth:      model.DefaultMaxDepth,
			},
		},
	}
}

func TestRunQuerySuccess(t *testing.T) {
	port, _ := buildFixture()
	d := newDispatcher(port)

	resp := d.Run(context.Background(), queryEnvelope("com.example.app", []model.Criterion{{Attribute: "AXTitle", Value: "Save"}}))
	require.Equal(t, "success", resp.Status)
	require.Nil(t, resp.Error)
}

func TestRunApplicationNotFound(t *testing.T) {
	port, _ := buildFixture()
	d := newDispatcher(port)

	resp := d.Run(context.Background(), queryEnvelope("com.nonexistent", nil))
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, "application_not_found", resp.Error.Code)
}

func TestRunPerformAction(t *testing.T) {
	port, _ := buildFixture()
	d := newDispatcher(port)

	envelope := model.CommandEnvelope{
		CommandID: "cmd-2",
		Command: model.Command{
			Type: model.CmdPerformAction,
			PerformAction: &model.PerformActionCommand{
				AppIdentifier: "com.example.app",
				Locator:       model.Locator{Criteria: []model.Criterion{{Attribute: "AXTitle", Value: "Save"}}},
				MaxDepth:      model.DefaultMaxDepth,
				Action:        "AXPress",
			},
		},
	}
	resp := d.Run(context.Background(), envelope)
	require.Equal(t, "success", resp.Status)
}

func TestRunBatchAggregatesFailures(t *testing.T) {
	port, _ := buildFixture()
	d := newDispatcher(port)

	ok := queryEnvelope("com.example.app", []model.Criterion{{Attribute: "AXTitle", Value: "Save"}}).Command
	bad := queryEnvelope("com.nonexistent", nil).Command

	envelope := model.CommandEnvelope{
		CommandID: "batch-1",
		Command: model.Command{
			Type:  model.CmdBatch,
			Batch: &model.BatchCommand{Commands: []model.Command{ok, bad}},
		},
	}
	resp := d.Run(context.Background(), envelope)
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, "batch_operation_failed", resp.Error.Code)
}

func TestRunBatchRejectsNestedBatch(t *testing.T) {
	port, _ := buildFixture()
	d := newDispatcher(port)

	nested := model.Command{Type: model.CmdBatch, Batch: &model.BatchCommand{}}
	envelope := model.CommandEnvelope{
		CommandID: "batch-2",
		Command: model.Command{
			Type:  model.CmdBatch,
			Batch: &model.BatchCommand{Commands: []model.Command{nested}},
		},
	}
	resp := d.Run(context.Background(), envelope)
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, "batch_operation_failed", resp.Error.Code)
}

func TestRunObserveFires(t *testing.T) {
	port, button := buildFixture()
	d := newDispatcher(port)

	var mu sync.Mutex
	fired := 0
	envelope := model.CommandEnvelope{
		CommandID: "obs-1",
		Command: model.Command{
			Type: model.CmdObserve,
			Observe: &model.ObserveCommand{
				AppIdentifier: "com.example.app",
				Notification:  "AXValueChanged",
				Handler: func(pid int, notification, brief string, info map[string]model.AttributeValue) {
					mu.Lock()
					fired++
					mu.Unlock()
				},
			},
		},
	}
	resp := d.Run(context.Background(), envelope)
	require.Equal(t, "success", resp.Status)

	// An observe without a locator registers on the application element
	// (the window root), and the fake only delivers for that exact element.
	port.Fire(100, button.Parent, "AXValueChanged", nil)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	})
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

func TestRunUnknownCommandType(t *testing.T) {
	port, _ := buildFixture()
	d := newDispatcher(port)

	resp := d.Run(context.Background(), model.CommandEnvelope{CommandID: "x", Command: model.Command{Type: "bogus"}})
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, "invalid_command", resp.Error.Code)
}

func TestCompileSchemaRejectsInvalidEnvelope(t *testing.T) {
	schemaJSON := []byte(`{
		"type": "object",
		"required": ["commandId", "command"],
		"properties": {
			"commandId": {"type": "string"},
			"command": {"type": "object"}
		}
	}`)
	schema, err := CompileSchema(schemaJSON)
	require.NoError(t, err)

	port, _ := buildFixture()
	d := newDispatcher(port)
	d.schema = schema

	resp := d.Run(context.Background(), model.CommandEnvelope{Command: model.Command{Type: model.CmdGetFocusedElement, GetFocusedElement: &model.GetFocusedElementCommand{AppIdentifier: "com.example.app"}}})
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, "invalid_command", resp.Error.Code)
}
