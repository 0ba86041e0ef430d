// Package locator implements the locator engine (§4.4): resolves a
// Locator to a single element via path-hint traversal followed by a
// bounded criteria search.
package locator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/corvidlabs/axengine/internal/axerrors"
	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/element"
	"github.com/corvidlabs/axengine/internal/model"
	"github.com/corvidlabs/axengine/internal/resolver"
	"github.com/corvidlabs/axengine/internal/value"
)

const maxComputedNameLen = 50

// Engine resolves locators against a live AXPort.
type Engine struct {
	port      axport.AXPort
	resolver  *resolver.Resolver
	unwrapper *value.Unwrapper
	log       zerolog.Logger
}

func New(port axport.AXPort, res *resolver.Resolver, unwrapper *value.Unwrapper, log zerolog.Logger) *Engine {
	return &Engine{port: port, resolver: res, unwrapper: unwrapper, log: log.With().Str("component", "locator").Logger()}
}

// Find implements the four-step algorithm in §4.4.
func (e *Engine) Find(ctx context.Context, appIdentifier model.AppIdentifier, loc model.Locator, maxDepth int) (*element.Handle, *axerrors.Error) {
	root, maxDepth, err := e.resolveRoot(ctx, appIdentifier, loc, maxDepth)
	if err != nil {
		return nil, err
	}

	found, ok := e.searchCriteria(root, loc, maxDepth)
	if !ok {
		return nil, axerrors.New(axerrors.KindElementNotFound, "locator.find",
			fmt.Sprintf("no element under %s matched the locator criteria", root.BriefDescription(element.FormatSmart)))
	}
	return found, nil
}

// FindAll resolves the locator's root the same way Find does, then
// collects every matching element under it (used by the CollectAll
// command), stopping early once maxResults are found (0 = unlimited).
func (e *Engine) FindAll(ctx context.Context, appIdentifier model.AppIdentifier, loc model.Locator, maxDepth, maxResults int) ([]*element.Handle, *axerrors.Error) {
	root, maxDepth, err := e.resolveRoot(ctx, appIdentifier, loc, maxDepth)
	if err != nil {
		return nil, err
	}

	var results []*element.Handle
	predicate := func(h *element.Handle) bool {
		if maxResults > 0 && len(results) >= maxResults {
			return false
		}
		if !matchCriteria(h, loc.Criteria, loc.MatchAll, e.log) {
			return false
		}
		if loc.RequireAction != "" && !h.IsActionSupported(loc.RequireAction) {
			return false
		}
		if loc.ComputedNameContains != "" {
			name := strings.ToLower(ComputedName(h))
			if !strings.Contains(name, strings.ToLower(loc.ComputedNameContains)) {
				return false
			}
		}
		return true
	}
	e.collect(root, maxDepth, 0, predicate, &results, maxResults)
	return results, nil
}

// resolveRoot resolves appIdentifier to a pid, fetches its application
// element, and descends any path hint, returning the final search root
// and the effective (defaulted) max depth for the criteria search.
func (e *Engine) resolveRoot(ctx context.Context, appIdentifier model.AppIdentifier, loc model.Locator, maxDepth int) (*element.Handle, int, *axerrors.Error) {
	pid, ok := e.resolver.Resolve(ctx, appIdentifier)
	if !ok {
		return nil, 0, axerrors.New(axerrors.KindApplicationNotFound, "locator.find",
			fmt.Sprintf("no running application matches %q", appIdentifier))
	}

	rootRef, err := e.port.ApplicationElement(pid)
	if err != nil {
		return nil, 0, axerrors.Wrap(err, axerrors.KindApplicationNotFound, "locator.find")
	}
	root := element.New(e.port, rootRef, pid, e.unwrapper)

	for i, step := range loc.PathHint {
		next, found := e.searchStep(root, step, loc.DebugPathSearch)
		if !found {
			return nil, 0, axerrors.New(axerrors.KindElementNotFound, "locator.find",
				fmt.Sprintf("path hint step %d matched nothing under %s", i, root.BriefDescription(element.FormatSmart)))
		}
		root = next
	}

	if maxDepth <= 0 {
		maxDepth = model.DefaultMaxDepth
	}
	return root, maxDepth, nil
}

// collect performs an exhaustive depth-first walk (unlike dfs, which
// stops at the first match) appending every node satisfying predicate
// to *out, stopping early once maxResults have been collected.
func (e *Engine) collect(root *element.Handle, maxDepth, currentDepth int, predicate func(*element.Handle) bool, out *[]*element.Handle, maxResults int) {
	if maxResults > 0 && len(*out) >= maxResults {
		return
	}
	if predicate(root) {
		*out = append(*out, root)
		if maxResults > 0 && len(*out) >= maxResults {
			return
		}
	}
	if currentDepth >= maxDepth {
		return
	}
	children, ok := root.Children()
	if !ok {
		return
	}
	for _, child := range children {
		e.collect(child, maxDepth, currentDepth+1, predicate, out, maxResults)
		if maxResults > 0 && len(*out) >= maxResults {
			return
		}
	}
}

// searchStep performs a bounded DFS under root for the first element
// satisfying step's criteria, parent-before-children, children in
// platform-reported order.
func (e *Engine) searchStep(root *element.Handle, step model.PathStep, debug bool) (*element.Handle, bool) {
	return e.dfs(root, step.EffectiveMaxDepth(), 0, func(h *element.Handle) bool {
		return matchCriteria(h, step.Criteria, step.MatchAll, e.log)
	}, debug, step.Criteria)
}

// searchCriteria performs a bounded DFS under root for the first
// element satisfying the locator's top-level criteria plus any
// require_action / computed_name_contains filters.
func (e *Engine) searchCriteria(root *element.Handle, loc model.Locator, maxDepth int) (*element.Handle, bool) {
	predicate := func(h *element.Handle) bool {
		if !matchCriteria(h, loc.Criteria, loc.MatchAll, e.log) {
			return false
		}
		if loc.RequireAction != "" && !h.IsActionSupported(loc.RequireAction) {
			return false
		}
		if loc.ComputedNameContains != "" {
			name := strings.ToLower(ComputedName(h))
			if !strings.Contains(name, strings.ToLower(loc.ComputedNameContains)) {
				return false
			}
		}
		return true
	}
	return e.dfs(root, maxDepth, 0, predicate, loc.DebugPathSearch, loc.Criteria)
}

// dfs walks root's subtree depth-first, parent before children,
// returning the first node for which predicate is true. When debug is
// set it emits one structured log line per visited node (§4.4).
func (e *Engine) dfs(root *element.Handle, maxDepth, currentDepth int, predicate func(*element.Handle) bool, debug bool, criteria []model.Criterion) (*element.Handle, bool) {
	status := "visited"
	matched := predicate(root)
	if matched {
		status = "matched"
	} else if currentDepth >= maxDepth {
		status = "max-depth"
	} else {
		status = "no-match"
	}
	if debug {
		role, _ := root.Role()
		title, _ := root.Title()
		identifier, _ := root.Identifier()
		e.log.Debug().
			Str("role", role).
			Str("title", title).
			Str("identifier", identifier).
			Int("depth", currentDepth).
			Int("maxDepth", maxDepth).
			Interface("criteria", criteria).
			Str("status", status).
			Msg("locator: visited node")
	}
	if matched {
		return root, true
	}
	if currentDepth >= maxDepth {
		return nil, false
	}
	children, ok := root.Children()
	if !ok {
		return nil, false
	}
	for _, child := range children {
		if found, ok := e.dfs(child, maxDepth, currentDepth+1, predicate, debug, criteria); ok {
			return found, true
		}
	}
	return nil, false
}

func matchCriteria(h *element.Handle, criteria []model.Criterion, matchAll bool, log zerolog.Logger) bool {
	if len(criteria) == 0 {
		return false
	}
	if matchAll {
		for _, c := range criteria {
			if !matchOne(h, c, log) {
				return false
			}
		}
		return true
	}
	for _, c := range criteria {
		if matchOne(h, c, log) {
			return true
		}
	}
	return false
}

func matchOne(h *element.Handle, c model.Criterion, log zerolog.Logger) bool {
	v, ok := h.Attribute(c.Attribute)
	if !ok {
		return false
	}
	actual, ok := v.StringValue()
	if !ok {
		return false
	}
	return compare(actual, c.Value, c.EffectiveMode(), c.Attribute, log)
}

// compare evaluates a single criterion match per mode. An invalid regex
// degrades to exact matching, logging a warning (§4.4).
func compare(actual, want string, mode model.MatchMode, attribute string, log zerolog.Logger) bool {
	switch mode {
	case model.MatchExact:
		return actual == want
	case model.MatchCaseInsensitiveExact:
		return strings.EqualFold(actual, want)
	case model.MatchContains:
		return strings.Contains(actual, want)
	case model.MatchRegex:
		re, err := regexp.Compile("^(?:" + want + ")$")
		if err != nil {
			log.Warn().Err(err).Str("attribute", attribute).Str("pattern", want).
				Msg("locator: invalid regex pattern, degrading to exact match")
			return actual == want
		}
		return re.MatchString(actual)
	default:
		return actual == want
	}
}

// ComputedName resolves an element's display name by the precedence
// in §4.4: title, value-as-string (truncated to 50 chars), identifier,
// description, help, placeholder; final fallback strips the "AX"
// platform prefix from the role name.
func ComputedName(h *element.Handle) string {
	if title, ok := h.Title(); ok && title != "" {
		return title
	}
	if v, ok := h.Value(); ok {
		if s, ok := v.StringValue(); ok && s != "" {
			if len(s) > maxComputedNameLen {
				s = s[:maxComputedNameLen]
			}
			return s
		}
	}
	if id, ok := h.Identifier(); ok && id != "" {
		return id
	}
	if d, ok := h.DescriptionText(); ok && d != "" {
		return d
	}
	if help, ok := h.Help(); ok && help != "" {
		return help
	}
	if p, ok := h.Placeholder(); ok && p != "" {
		return p
	}
	role, _ := h.Role()
	return strings.TrimPrefix(role, "AX")
}
