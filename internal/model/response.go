package model

import "github.com/corvidlabs/axengine/internal/axerrors"

// ErrorInfo is the wire shape for a failed Response (§6): {message, code}.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Response is the dispatcher's uniform result envelope: either a
// success payload or a taxonomized error, never both.
type Response struct {
	Status  string    `json:"status"`
	Payload any       `json:"payload,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// Success builds a {status:"success", payload:<value>} response.
func Success(payload any) Response {
	return Response{Status: "success", Payload: payload}
}

// Failure builds a {status:"error", error:{message, code}} response
// from a taxonomized error.
func Failure(err *axerrors.Error) Response {
	return Response{
		Status: "error",
		Error: &ErrorInfo{
			Message: err.Error(),
			Code:    err.Kind.Code(),
		},
	}
}

// AXElementData is a detached snapshot of an element for the wire (§3).
type AXElementData struct {
	BriefDescription      string                    `json:"briefDescription"`
	Role                  string                    `json:"role"`
	Attributes            map[string]AttributeValue `json:"attributes"`
	AllPossibleAttributes []string                  `json:"allPossibleAttributes"`
	TextualContent        *string                   `json:"textualContent"`
	ChildrenBrief         []string                  `json:"childrenBrief,omitempty"`
	FullDescription       string                    `json:"fullDescription"`
	Path                  []string                  `json:"path"`
}

// AXElementDescription is the recursive tree shape produced by
// DescribeElement. An ignored element (when include_ignored is false)
// is represented as a stub with no attributes/children, its
// BriefDescription suffixed " (Ignored)".
type AXElementDescription struct {
	BriefDescription string                     `json:"briefDescription"`
	Role             string                     `json:"role,omitempty"`
	Attributes       map[string]AttributeValue  `json:"attributes,omitempty"`
	Children         []AXElementDescription     `json:"children,omitempty"`
	Ignored          bool                       `json:"ignored,omitempty"`
}
