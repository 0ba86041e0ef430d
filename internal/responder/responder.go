// Package responder builds the response-data-model shapes (§4.6) from
// a live element.Handle: AXElementData snapshots, recursive
// AXElementDescription trees, and extracted text.
package responder

import (
	"strings"

	"github.com/corvidlabs/axengine/internal/element"
	"github.com/corvidlabs/axengine/internal/model"
)

// DefaultGenericExtractTextMaxDepth is the generic extractor's own
// cap (distinct from the handler-level ExtractText command's default
// of 1), per §4.6.
const DefaultGenericExtractTextMaxDepth = 5

// BuildQueryResponse fetches attrsToFetch from h (explicit null when
// absent), the element's full attribute-name listing, its textual
// content, optionally direct children's brief descriptions, its full
// (stringified) description, and its path segments.
func BuildQueryResponse(h *element.Handle, attrsToFetch []string, includeChildrenBrief bool) model.AXElementData {
	attributes := make(map[string]model.AttributeValue, len(attrsToFetch))
	for _, name := range attrsToFetch {
		if v, ok := h.Attribute(name); ok {
			attributes[name] = v
		} else {
			attributes[name] = model.Null()
		}
	}

	role, _ := h.Role()

	var allNames []string
	if names, ok := h.SupportedAttributeNames(); ok {
		allNames = names
	}

	text, _ := ExtractText(h, true, DefaultGenericExtractTextMaxDepth, 0)

	var childrenBrief []string
	if includeChildrenBrief {
		if children, ok := h.Children(); ok {
			childrenBrief = make([]string, len(children))
			for i, c := range children {
				childrenBrief[i] = c.BriefDescription(element.FormatSmart)
			}
		}
	}

	var textualContent *string
	if text != "" {
		textualContent = &text
	}

	return model.AXElementData{
		BriefDescription:      h.BriefDescription(element.FormatSmart),
		Role:                  role,
		Attributes:            attributes,
		AllPossibleAttributes: allNames,
		TextualContent:        textualContent,
		ChildrenBrief:         childrenBrief,
		FullDescription:       h.BriefDescription(element.FormatStringified),
		Path:                  h.GeneratePathSegments(nil),
	}
}

// DescribeTree recursively walks h to depth, producing an
// AXElementDescription tree. When includeIgnored is false, ignored
// elements (hidden = true) become a childless stub suffixed
// " (Ignored)" and are not descended into.
func DescribeTree(h *element.Handle, depth int, includeIgnored bool, currentDepth int) model.AXElementDescription {
	hidden, _ := h.IsHidden()
	if hidden && !includeIgnored {
		return model.AXElementDescription{
			BriefDescription: h.BriefDescription(element.FormatSmart) + " (Ignored)",
			Ignored:          true,
		}
	}

	role, _ := h.Role()
	desc := model.AXElementDescription{
		BriefDescription: h.BriefDescription(element.FormatSmart),
		Role:             role,
	}

	if currentDepth >= depth {
		return desc
	}

	attrs := make(map[string]model.AttributeValue, len(model.DefaultDescribeAttributes))
	for _, name := range model.DefaultDescribeAttributes {
		if v, ok := h.Attribute(name); ok {
			attrs[name] = v
		}
	}
	desc.Attributes = attrs

	children, ok := h.Children()
	if !ok || len(children) == 0 {
		return desc
	}
	desc.Children = make([]model.AXElementDescription, len(children))
	for i, c := range children {
		desc.Children[i] = DescribeTree(c, depth, includeIgnored, currentDepth+1)
	}
	return desc
}

// ExtractText collects textual content from h: direct text is the
// first non-empty of title, value-as-string, description, placeholder
// (element.Handle's BriefDescription(TextContent) logic, reused
// here); if includeChildren and within maxDepth, child text is
// collected the same way, filtered for emptiness, and joined with
// single spaces, then merged with the direct text. Returns ("", false)
// when both are empty.
func ExtractText(h *element.Handle, includeChildren bool, maxDepth, currentDepth int) (string, bool) {
	direct := directText(h)

	if !includeChildren || currentDepth >= maxDepth {
		return direct, direct != ""
	}

	children, ok := h.Children()
	if !ok {
		return direct, direct != ""
	}

	parts := make([]string, 0, len(children))
	if direct != "" {
		parts = append(parts, direct)
	}
	for _, c := range children {
		if text, ok := ExtractText(c, includeChildren, maxDepth, currentDepth+1); ok {
			parts = append(parts, text)
		}
	}
	merged := strings.Join(parts, " ")
	return merged, merged != ""
}

func directText(h *element.Handle) string {
	if title, ok := h.Title(); ok && title != "" {
		return title
	}
	if v, ok := h.Value(); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			return s
		}
	}
	if d, ok := h.DescriptionText(); ok && d != "" {
		return d
	}
	if p, ok := h.Placeholder(); ok && p != "" {
		return p
	}
	return ""
}
