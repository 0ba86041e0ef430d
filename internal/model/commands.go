package model

import (
	"encoding/json"
	"fmt"
)

// CommandType is the closed set of dispatcher operations (§4.1). Wire
// values are lower-camel-case strings per §6.
type CommandType string

const (
	CmdQuery             CommandType = "query"
	CmdGetAttributes     CommandType = "getAttributes"
	CmdDescribeElement   CommandType = "describeElement"
	CmdExtractText       CommandType = "extractText"
	CmdPerformAction     CommandType = "performAction"
	CmdSetFocusedValue   CommandType = "setFocusedValue"
	CmdGetElementAtPoint CommandType = "getElementAtPoint"
	CmdGetFocusedElement CommandType = "getFocusedElement"
	CmdObserve           CommandType = "observe"
	CmdCollectAll        CommandType = "collectAll"
	CmdBatch             CommandType = "batch"
)

// Documented wire defaults (§6): "missing optional fields take the
// documented defaults".
const (
	DefaultMaxDepth             = 10
	DefaultIncludeChildrenBrief = false
	DefaultIncludeIgnored       = false
	DefaultFormatOption         = "smart"
	DefaultDescribeDepth        = 3
	DefaultExtractTextMaxDepth  = 1
)

// DefaultDescribeAttributes is the fixed, documented attribute list
// DescribeElement reads for every node (its command carries no
// attribute list), and the list Query, CollectAll,
// GetElementAtPoint and GetFocusedElement fall back to when a command
// omits Attributes. Open
// Question #3 in SPEC_FULL.md resolves this to a stable, documented
// order rather than re-deriving it per call.
var DefaultDescribeAttributes = []string{
	"AXRole",
	"AXSubrole",
	"AXTitle",
	"AXValue",
	"AXDescription",
	"AXHelp",
	"AXEnabled",
	"AXFocused",
	"AXIdentifier",
}

// QueryCommand locates an element and returns its snapshot.
type QueryCommand struct {
	AppIdentifier        string   `json:"appIdentifier"`
	Locator              Locator  `json:"locator"`
	MaxDepth             int      `json:"maxDepth"`
	Attributes           []string `json:"attributes,omitempty"`
	IncludeChildrenBrief bool     `json:"includeChildrenBrief"`
}

// GetAttributesCommand fetches a named attribute list from an element.
type GetAttributesCommand struct {
	AppIdentifier string   `json:"appIdentifier"`
	Locator       Locator  `json:"locator"`
	MaxDepth      int      `json:"maxDepth"`
	Attributes    []string `json:"attributes"`
}

// DescribeElementCommand walks the element tree to a depth.
type DescribeElementCommand struct {
	AppIdentifier  string  `json:"appIdentifier"`
	Locator        Locator `json:"locator"`
	MaxDepth       int     `json:"maxDepth"`
	Depth          int     `json:"depth"`
	IncludeIgnored bool    `json:"includeIgnored"`
}

// ExtractTextCommand collects textual content from an element.
type ExtractTextCommand struct {
	AppIdentifier   string  `json:"appIdentifier"`
	Locator         Locator `json:"locator"`
	MaxDepth        int     `json:"maxDepth"`
	IncludeChildren bool    `json:"includeChildren"`
	MaxTextDepth    int     `json:"maxTextDepth"`
}

// PerformActionCommand invokes a named action on an element.
type PerformActionCommand struct {
	AppIdentifier string  `json:"appIdentifier"`
	Locator       Locator `json:"locator"`
	MaxDepth      int     `json:"maxDepth"`
	Action        string  `json:"action"`
}

// SetFocusedValueCommand focuses and writes the value attribute.
type SetFocusedValueCommand struct {
	AppIdentifier string  `json:"appIdentifier"`
	Locator       Locator `json:"locator"`
	MaxDepth      int     `json:"maxDepth"`
	Value         string  `json:"value"`
}

// GetElementAtPointCommand hit-tests screen coordinates.
type GetElementAtPointCommand struct {
	AppIdentifier string `json:"appIdentifier"`
	Point         Point  `json:"point"`
}

// GetFocusedElementCommand returns the currently-focused element of an app.
type GetFocusedElementCommand struct {
	AppIdentifier string `json:"appIdentifier"`
}

// ObserveHandler is invoked by the observer center's fan-out for a
// matching notification. It cannot travel over JSON — a command
// decoded off the wire always has a nil Handler, and the dispatcher
// reports InvalidParameter for it; Observe is meant to be constructed
// programmatically by an in-process caller holding a live callback.
type ObserveHandler func(pid int, notification string, elementBrief string, info map[string]AttributeValue)

// ObserveCommand subscribes to a notification.
type ObserveCommand struct {
	AppIdentifier string          `json:"appIdentifier"`
	Locator       *Locator        `json:"locator,omitempty"`
	Notification  string          `json:"notification"`
	Handler       ObserveHandler  `json:"-"`
}

// CollectAllCommand walks the tree, filters, and snapshots many elements.
type CollectAllCommand struct {
	AppIdentifier string   `json:"appIdentifier"`
	Locator       Locator  `json:"locator"`
	MaxDepth      int      `json:"maxDepth"`
	Attributes    []string `json:"attributes,omitempty"`
	MaxResults    int      `json:"maxResults,omitempty"`
}

// BatchCommand runs an ordered list of sub-commands. Nested batch is
// rejected by the dispatcher (§4.1).
type BatchCommand struct {
	Commands []Command `json:"commands"`
}

// Command is the closed, tagged sum of dispatcher operations. It
// hand-codes its own JSON (design note: "tagged enum with hand-written
// JSON encoding/decoding; migration helpers not needed") rather than
// relying on reflection-based polymorphism.
type Command struct {
	Type              CommandType
	Query             *QueryCommand
	GetAttributes     *GetAttributesCommand
	DescribeElement   *DescribeElementCommand
	ExtractText       *ExtractTextCommand
	PerformAction     *PerformActionCommand
	SetFocusedValue   *SetFocusedValueCommand
	GetElementAtPoint *GetElementAtPointCommand
	GetFocusedElement *GetFocusedElementCommand
	Observe           *ObserveCommand
	CollectAll        *CollectAllCommand
	Batch             *BatchCommand
}

func (c Command) MarshalJSON() ([]byte, error) {
	var payload any
	switch c.Type {
	case CmdQuery:
		payload = c.Query
	case CmdGetAttributes:
		payload = c.GetAttributes
	case CmdDescribeElement:
		payload = c.DescribeElement
	case CmdExtractText:
		payload = c.ExtractText
	case CmdPerformAction:
		payload = c.PerformAction
	case CmdSetFocusedValue:
		payload = c.SetFocusedValue
	case CmdGetElementAtPoint:
		payload = c.GetElementAtPoint
	case CmdGetFocusedElement:
		payload = c.GetFocusedElement
	case CmdObserve:
		payload = c.Observe
	case CmdCollectAll:
		payload = c.CollectAll
	case CmdBatch:
		payload = c.Batch
	default:
		return nil, fmt.Errorf("model: unknown command type %q", c.Type)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	merged := map[string]json.RawMessage{"type": mustRaw(c.Type)}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func mustRaw(t CommandType) json.RawMessage {
	b, _ := json.Marshal(t)
	return b
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var peek struct {
		Type CommandType `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return fmt.Errorf("model: decoding command envelope: %w", err)
	}
	c.Type = peek.Type

	switch peek.Type {
	case CmdQuery:
		var v QueryCommand
		applyQueryDefaults(&v)
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.Query = &v
	case CmdGetAttributes:
		var v GetAttributesCommand
		v.MaxDepth = DefaultMaxDepth
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.GetAttributes = &v
	case CmdDescribeElement:
		var v DescribeElementCommand
		v.MaxDepth = DefaultMaxDepth
		v.Depth = DefaultDescribeDepth
		v.IncludeIgnored = DefaultIncludeIgnored
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.DescribeElement = &v
	case CmdExtractText:
		var v ExtractTextCommand
		v.MaxDepth = DefaultMaxDepth
		v.IncludeChildren = true
		v.MaxTextDepth = DefaultExtractTextMaxDepth
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.ExtractText = &v
	case CmdPerformAction:
		var v PerformActionCommand
		v.MaxDepth = DefaultMaxDepth
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.PerformAction = &v
	case CmdSetFocusedValue:
		var v SetFocusedValueCommand
		v.MaxDepth = DefaultMaxDepth
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.SetFocusedValue = &v
	case CmdGetElementAtPoint:
		var v GetElementAtPointCommand
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.GetElementAtPoint = &v
	case CmdGetFocusedElement:
		var v GetFocusedElementCommand
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.GetFocusedElement = &v
	case CmdObserve:
		var v ObserveCommand
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.Observe = &v
	case CmdCollectAll:
		var v CollectAllCommand
		v.MaxDepth = DefaultMaxDepth
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.CollectAll = &v
	case CmdBatch:
		var v BatchCommand
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		c.Batch = &v
	default:
		return fmt.Errorf("model: unknown command type %q", peek.Type)
	}
	return nil
}

func applyQueryDefaults(v *QueryCommand) {
	v.MaxDepth = DefaultMaxDepth
	v.IncludeChildrenBrief = DefaultIncludeChildrenBrief
}

// CommandEnvelope is a request: a unique command_id plus the tagged Command.
type CommandEnvelope struct {
	CommandID string  `json:"commandId,omitempty"`
	Command   Command `json:"command"`
}
