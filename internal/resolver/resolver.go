// Package resolver maps an AppIdentifier to a process id (§4.3).
package resolver

import (
	"context"
	"strconv"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/model"
)

// BundlePolicy optionally restricts which bundle ids may be resolved,
// grounded on the teacher's allow/deny glob lists for agent/container
// filtering. Empty Allow means "no allow-list restriction". Patterns
// use shell-style globs via go-wildcard.
type BundlePolicy struct {
	Allow []string
	Deny  []string
}

func (p BundlePolicy) permits(bundleID string) bool {
	for _, pattern := range p.Deny {
		if wildcard.Match(pattern, bundleID) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, pattern := range p.Allow {
		if wildcard.Match(pattern, bundleID) {
			return true
		}
	}
	return false
}

// Resolver implements the five-step fixed resolution order (§4.3).
// Concurrent resolves for the same identifier are deduplicated with
// singleflight, since enumerating running applications is the same
// platform round trip regardless of how many callers are waiting on
// it.
type Resolver struct {
	port   axport.AXPort
	policy BundlePolicy
	group  singleflight.Group
	log    zerolog.Logger
}

func New(port axport.AXPort, policy BundlePolicy, log zerolog.Logger) *Resolver {
	return &Resolver{port: port, policy: policy, log: log.With().Str("component", "resolver").Logger()}
}

// Resolve maps identifier to a pid following: focused → bundle id →
// localized name → bundle path → numeric pid, first match wins.
func (r *Resolver) Resolve(ctx context.Context, identifier model.AppIdentifier) (int, bool) {
	v, _, _ := r.group.Do(string(identifier), func() (any, error) {
		pid, ok := r.resolveLocked(identifier)
		return resolveResult{pid, ok}, nil
	})
	res := v.(resolveResult)
	return res.pid, res.ok
}

type resolveResult struct {
	pid int
	ok  bool
}

func (r *Resolver) resolveLocked(identifier model.AppIdentifier) (int, bool) {
	id := string(identifier)

	apps, err := r.port.RunningApplications()
	if err != nil {
		r.log.Warn().Err(err).Str("identifier", id).Msg("failed to enumerate running applications")
		return 0, false
	}

	if identifier == model.FocusedApp {
		if app, ok, err := r.port.FrontmostApplication(); err == nil && ok && !app.Terminated {
			return app.PID, true
		}
		r.log.Warn().Str("identifier", id).Msg("no frontmost application")
		return 0, false
	}

	if pid, ok := r.byBundleID(apps, id); ok {
		return pid, true
	}
	if pid, ok := r.byLocalizedName(apps, id); ok {
		return pid, true
	}
	if pid, ok := r.byPath(apps, id); ok {
		return pid, true
	}
	if pid, ok := r.byPID(apps, id); ok {
		return pid, true
	}

	r.log.Warn().Str("identifier", id).Msg("could not resolve application identifier")
	return 0, false
}

func (r *Resolver) byBundleID(apps []axport.AppInfo, id string) (int, bool) {
	for _, app := range apps {
		if app.Terminated || app.BundleID != id {
			continue
		}
		if !r.policy.permits(app.BundleID) {
			continue
		}
		return app.PID, true
	}
	return 0, false
}

func (r *Resolver) byLocalizedName(apps []axport.AppInfo, id string) (int, bool) {
	want := strings.ToLower(id)
	for _, app := range apps {
		if app.Terminated || strings.ToLower(app.Name) != want {
			continue
		}
		if !r.policy.permits(app.BundleID) {
			continue
		}
		return app.PID, true
	}
	return 0, false
}

// byPath resolves a filesystem path to a bundle by matching the
// enumeration's own Path field, which already carries the bundle
// identity the platform would otherwise require a plist read to
// recover.
func (r *Resolver) byPath(apps []axport.AppInfo, id string) (int, bool) {
	if !strings.HasPrefix(id, "/") {
		return 0, false
	}
	for _, app := range apps {
		if app.Terminated || app.Path != id {
			continue
		}
		if !r.policy.permits(app.BundleID) {
			continue
		}
		return app.PID, true
	}
	return 0, false
}

func (r *Resolver) byPID(apps []axport.AppInfo, id string) (int, bool) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, false
	}
	for _, app := range apps {
		if app.Terminated || app.PID != n {
			continue
		}
		if !r.policy.permits(app.BundleID) {
			continue
		}
		return app.PID, true
	}
	return 0, false
}
