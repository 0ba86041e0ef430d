package model

// MatchMode is the closed set of comparison strategies a Criterion can
// use, per §4.4.
type MatchMode string

const (
	MatchExact                MatchMode = "exact"
	MatchContains              MatchMode = "contains"
	MatchRegex                 MatchMode = "regex"
	MatchCaseInsensitiveExact  MatchMode = "case_insensitive_exact"
)

// Criterion is one predicate on an element: does the named attribute's
// stringified value compare, by MatchMode, to Value.
type Criterion struct {
	Attribute string    `json:"attribute"`
	Value     string    `json:"value"`
	MatchMode MatchMode `json:"matchMode,omitempty"`
}

// EffectiveMode returns the criterion's match mode, defaulting to
// exact when unset.
func (c Criterion) EffectiveMode() MatchMode {
	if c.MatchMode == "" {
		return MatchExact
	}
	return c.MatchMode
}

// PathStep is one hop of a Locator's path hint.
type PathStep struct {
	Criteria       []Criterion `json:"criteria"`
	MatchAll       bool        `json:"matchAll,omitempty"`
	MaxDepthForStep *int       `json:"maxDepthForStep,omitempty"`
}

// EffectiveMaxDepth returns the step's configured depth cap, defaulting
// to 3 per §4.4 step 2.
func (s PathStep) EffectiveMaxDepth() int {
	if s.MaxDepthForStep != nil && *s.MaxDepthForStep > 0 {
		return *s.MaxDepthForStep
	}
	return 3
}

// Locator is the declarative "how to find an element" specification.
type Locator struct {
	MatchAll             bool       `json:"matchAll,omitempty"`
	Criteria             []Criterion `json:"criteria,omitempty"`
	PathHint             []PathStep  `json:"pathHint,omitempty"`
	RequireAction        string      `json:"requireAction,omitempty"`
	ComputedNameContains string      `json:"computedNameContains,omitempty"`
	DebugPathSearch      bool        `json:"debugPathSearch,omitempty"`
}

// AppIdentifier selects the target application: "focused", a bundle
// id, a localized app name, an absolute bundle path, or a numeric pid
// given as a string — resolved by internal/resolver in that order.
type AppIdentifier string

const FocusedApp AppIdentifier = "focused"
