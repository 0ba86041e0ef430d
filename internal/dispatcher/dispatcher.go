// Package dispatcher implements the single command entry point (§4.1):
// Run(envelope) → Response, routing to one handler per command variant
// with inline batch handling.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/corvidlabs/axengine/internal/axerrors"
	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/element"
	"github.com/corvidlabs/axengine/internal/locator"
	"github.com/corvidlabs/axengine/internal/model"
	"github.com/corvidlabs/axengine/internal/observer"
	"github.com/corvidlabs/axengine/internal/resolver"
	"github.com/corvidlabs/axengine/internal/responder"
	"github.com/corvidlabs/axengine/internal/value"
)

// Metrics is the narrow set of counters the dispatcher reports to, if
// any; a nil Metrics is a valid no-op dispatcher configuration.
type Metrics interface {
	ObserveCommand(commandType model.CommandType, status string)
	ObserveError(code string)
}

// Dispatcher wires together the resolver, locator engine, observer
// center, and response builders behind the single Run entry point.
type Dispatcher struct {
	port     axport.AXPort
	resolver *resolver.Resolver
	locator  *locator.Engine
	center   *observer.Center
	unwrap   *value.Unwrapper
	log      zerolog.Logger
	metrics  Metrics
	schema   *jsonschema.Schema
}

// New builds a Dispatcher. schema may be nil to skip envelope
// validation.
func New(port axport.AXPort, res *resolver.Resolver, loc *locator.Engine, center *observer.Center, unwrap *value.Unwrapper, log zerolog.Logger, metrics Metrics, schema *jsonschema.Schema) *Dispatcher {
	return &Dispatcher{
		port:     port,
		resolver: res,
		locator:  loc,
		center:   center,
		unwrap:   unwrap,
		log:      log.With().Str("component", "dispatcher").Logger(),
		metrics:  metrics,
		schema:   schema,
	}
}

// CompileSchema compiles an envelope JSON schema document the way the
// teacher's registry service compiles payload schemas: add it as an
// in-memory resource, then compile by that resource name.
func CompileSchema(schemaJSON []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("dispatcher: unmarshal command envelope schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		return nil, fmt.Errorf("dispatcher: add envelope schema resource: %w", err)
	}
	schema, err := c.Compile("envelope.json")
	if err != nil {
		return nil, fmt.Errorf("dispatcher: compile envelope schema: %w", err)
	}
	return schema, nil
}

// Run inspects the tagged command and routes to the matching handler,
// producing exactly one Response.
func (d *Dispatcher) Run(ctx context.Context, envelope model.CommandEnvelope) model.Response {
	log := d.log.With().Str("commandId", envelope.CommandID).Str("commandType", string(envelope.Command.Type)).Logger()
	log.Info().Msg("dispatcher: command received")

	if d.schema != nil {
		if err := d.validateEnvelope(envelope); err != nil {
			log.Warn().Err(err).Msg("dispatcher: envelope failed schema validation")
			return d.fail(envelope.Command.Type, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.run", err.Error()))
		}
	}

	payload, err := d.route(ctx, envelope.Command, false)
	if err != nil {
		log.Error().Str("kind", string(err.Kind)).Msg("dispatcher: command failed")
		return d.fail(envelope.Command.Type, err)
	}
	log.Debug().Msg("dispatcher: command succeeded")
	if d.metrics != nil {
		d.metrics.ObserveCommand(envelope.Command.Type, "success")
	}
	return model.Success(payload)
}

func (d *Dispatcher) fail(cmdType model.CommandType, err *axerrors.Error) model.Response {
	if d.metrics != nil {
		d.metrics.ObserveCommand(cmdType, "error")
		d.metrics.ObserveError(err.Kind.Code())
	}
	return model.Failure(err)
}

func (d *Dispatcher) validateEnvelope(envelope model.CommandEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return err
	}
	return d.schema.Validate(doc)
}

// route dispatches one command. insideBatch forbids nested batch.
func (d *Dispatcher) route(ctx context.Context, cmd model.Command, insideBatch bool) (any, *axerrors.Error) {
	switch cmd.Type {
	case model.CmdQuery:
		return d.handleQuery(ctx, cmd.Query)
	case model.CmdGetAttributes:
		return d.handleGetAttributes(ctx, cmd.GetAttributes)
	case model.CmdDescribeElement:
		return d.handleDescribeElement(ctx, cmd.DescribeElement)
	case model.CmdExtractText:
		return d.handleExtractText(ctx, cmd.ExtractText)
	case model.CmdPerformAction:
		return d.handlePerformAction(ctx, cmd.PerformAction)
	case model.CmdSetFocusedValue:
		return d.handleSetFocusedValue(ctx, cmd.SetFocusedValue)
	case model.CmdGetElementAtPoint:
		return d.handleGetElementAtPoint(ctx, cmd.GetElementAtPoint)
	case model.CmdGetFocusedElement:
		return d.handleGetFocusedElement(ctx, cmd.GetFocusedElement)
	case model.CmdObserve:
		return d.handleObserve(ctx, cmd.Observe)
	case model.CmdCollectAll:
		return d.handleCollectAll(ctx, cmd.CollectAll)
	case model.CmdBatch:
		if insideBatch {
			return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.batch", "nested batch is not allowed")
		}
		return d.handleBatch(ctx, cmd.Batch)
	default:
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.run", fmt.Sprintf("unknown command type %q", cmd.Type))
	}
}

func (d *Dispatcher) handleQuery(ctx context.Context, cmd *model.QueryCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.query", "missing query command body")
	}
	h, err := d.locator.Find(ctx, model.AppIdentifier(cmd.AppIdentifier), cmd.Locator, cmd.MaxDepth)
	if err != nil {
		return nil, err
	}
	attrs := cmd.Attributes
	if len(attrs) == 0 {
		attrs = model.DefaultDescribeAttributes
	}
	return responder.BuildQueryResponse(h, attrs, cmd.IncludeChildrenBrief), nil
}

func (d *Dispatcher) handleGetAttributes(ctx context.Context, cmd *model.GetAttributesCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.getAttributes", "missing command body")
	}
	h, err := d.locator.Find(ctx, model.AppIdentifier(cmd.AppIdentifier), cmd.Locator, cmd.MaxDepth)
	if err != nil {
		return nil, err
	}
	attributes := make(map[string]model.AttributeValue, len(cmd.Attributes))
	for _, name := range cmd.Attributes {
		if v, ok := h.Attribute(name); ok {
			attributes[name] = v
		} else {
			attributes[name] = model.Null()
		}
	}
	return map[string]any{
		"attributes":         attributes,
		"elementDescription": h.BriefDescription(element.FormatSmart),
	}, nil
}

func (d *Dispatcher) handleDescribeElement(ctx context.Context, cmd *model.DescribeElementCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.describeElement", "missing command body")
	}
	h, err := d.locator.Find(ctx, model.AppIdentifier(cmd.AppIdentifier), cmd.Locator, cmd.MaxDepth)
	if err != nil {
		return nil, err
	}
	return responder.DescribeTree(h, cmd.Depth, cmd.IncludeIgnored, 0), nil
}

func (d *Dispatcher) handleExtractText(ctx context.Context, cmd *model.ExtractTextCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.extractText", "missing command body")
	}
	h, err := d.locator.Find(ctx, model.AppIdentifier(cmd.AppIdentifier), cmd.Locator, cmd.MaxDepth)
	if err != nil {
		return nil, err
	}
	text, _ := responder.ExtractText(h, cmd.IncludeChildren, cmd.MaxTextDepth, 0)
	return map[string]any{"text": text}, nil
}

func (d *Dispatcher) handlePerformAction(ctx context.Context, cmd *model.PerformActionCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.performAction", "missing command body")
	}
	h, err := d.locator.Find(ctx, model.AppIdentifier(cmd.AppIdentifier), cmd.Locator, cmd.MaxDepth)
	if err != nil {
		return nil, err
	}
	if err := h.PerformAction(cmd.Action); err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("performed %q on %s", cmd.Action, h.BriefDescription(element.FormatSmart))}, nil
}

func (d *Dispatcher) handleSetFocusedValue(ctx context.Context, cmd *model.SetFocusedValueCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.setFocusedValue", "missing command body")
	}
	h, err := d.locator.Find(ctx, model.AppIdentifier(cmd.AppIdentifier), cmd.Locator, cmd.MaxDepth)
	if err != nil {
		return nil, err
	}
	if err := h.SetValue(element.AttrFocused, model.Bool(true)); err != nil {
		return nil, err
	}
	if err := h.SetValue(element.AttrValue, model.String(cmd.Value)); err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("set value on %s", h.BriefDescription(element.FormatSmart))}, nil
}

func (d *Dispatcher) handleGetElementAtPoint(ctx context.Context, cmd *model.GetElementAtPointCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.getElementAtPoint", "missing command body")
	}
	pid, ok := d.resolver.Resolve(ctx, model.AppIdentifier(cmd.AppIdentifier))
	if !ok {
		return nil, axerrors.New(axerrors.KindApplicationNotFound, "dispatcher.getElementAtPoint",
			fmt.Sprintf("no running application matches %q", cmd.AppIdentifier))
	}
	ref, err := d.port.ElementAtPoint(cmd.Point.X, cmd.Point.Y)
	if err != nil {
		return nil, axerrors.Wrap(err, axerrors.KindInternal, "dispatcher.getElementAtPoint")
	}
	if ref == nil {
		return map[string]any{"message": "no element at point", "element": nil}, nil
	}
	h := element.New(d.port, ref, pid, d.unwrap)
	return responder.BuildQueryResponse(h, model.DefaultDescribeAttributes, false), nil
}

func (d *Dispatcher) handleGetFocusedElement(ctx context.Context, cmd *model.GetFocusedElementCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.getFocusedElement", "missing command body")
	}
	pid, ok := d.resolver.Resolve(ctx, model.AppIdentifier(cmd.AppIdentifier))
	if !ok {
		return nil, axerrors.New(axerrors.KindApplicationNotFound, "dispatcher.getFocusedElement",
			fmt.Sprintf("no running application matches %q", cmd.AppIdentifier))
	}
	rootRef, err := d.port.ApplicationElement(pid)
	if err != nil {
		return nil, axerrors.Wrap(err, axerrors.KindApplicationNotFound, "dispatcher.getFocusedElement")
	}
	root := element.New(d.port, rootRef, pid, d.unwrap)
	focused, ok := root.FocusedUIElement()
	if !ok {
		return map[string]any{"message": "application has no focused element"}, nil
	}
	return responder.BuildQueryResponse(focused, model.DefaultDescribeAttributes, false), nil
}

func (d *Dispatcher) handleObserve(ctx context.Context, cmd *model.ObserveCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.observe", "missing command body")
	}
	if cmd.Handler == nil {
		return nil, axerrors.New(axerrors.KindInvalidParameter, "dispatcher.observe",
			"observe requires an in-process handler; it cannot be constructed from a decoded wire command")
	}
	pid, ok := d.resolver.Resolve(ctx, model.AppIdentifier(cmd.AppIdentifier))
	if !ok {
		return nil, axerrors.New(axerrors.KindApplicationNotFound, "dispatcher.observe",
			fmt.Sprintf("no running application matches %q", cmd.AppIdentifier))
	}

	var target axport.NativeRef
	if cmd.Locator != nil {
		h, err := d.locator.Find(ctx, model.AppIdentifier(cmd.AppIdentifier), *cmd.Locator, model.DefaultMaxDepth)
		if err != nil {
			return nil, err
		}
		target = h.Ref()
	}

	handler := func(pid int, notification, elementBrief string, info map[string]model.AttributeValue) {
		cmd.Handler(pid, notification, elementBrief, info)
	}
	if _, err := d.center.Subscribe(&pid, target, cmd.Notification, handler); err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("subscribed to %q for pid %d", cmd.Notification, pid)}, nil
}

func (d *Dispatcher) handleCollectAll(ctx context.Context, cmd *model.CollectAllCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.collectAll", "missing command body")
	}
	handles, err := d.locator.FindAll(ctx, model.AppIdentifier(cmd.AppIdentifier), cmd.Locator, cmd.MaxDepth, cmd.MaxResults)
	if err != nil {
		return nil, err
	}
	attrs := cmd.Attributes
	if len(attrs) == 0 {
		attrs = model.DefaultDescribeAttributes
	}
	elements := make([]model.AXElementData, len(handles))
	for i, h := range handles {
		elements[i] = responder.BuildQueryResponse(h, attrs, false)
	}
	return map[string]any{"elements": elements, "count": len(elements)}, nil
}

// handleBatch runs cmd's sub-commands in order. Nested batch is
// rejected per sub-command as InvalidCommand; any sub-command error
// fails the whole batch with BatchOperationFailed, aggregating every
// failure's message (§4.1).
func (d *Dispatcher) handleBatch(ctx context.Context, cmd *model.BatchCommand) (any, *axerrors.Error) {
	if cmd == nil {
		return nil, axerrors.New(axerrors.KindInvalidCommand, "dispatcher.batch", "missing command body")
	}

	results := make([]any, 0, len(cmd.Commands))
	var failures []string
	for i, sub := range cmd.Commands {
		payload, err := d.route(ctx, sub, true)
		if err != nil {
			failures = append(failures, fmt.Sprintf("sub-command %d (%s): %s", i, sub.Type, err.Error()))
			continue
		}
		results = append(results, payload)
	}

	if len(failures) > 0 {
		return nil, axerrors.New(axerrors.KindBatchOperationFailed, "dispatcher.batch",
			fmt.Sprintf("%d of %d sub-commands failed: %s", len(failures), len(cmd.Commands), joinSemicolon(failures)))
	}
	return map[string]any{"results": results, "errors": nil}, nil
}

func joinSemicolon(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}
