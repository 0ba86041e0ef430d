package axport

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessEnumerator wraps an AXPort and replaces its process
// enumeration with a real OS-backed one via gopsutil, while
// delegating every element/attribute/observer/permission call to the
// wrapped port unchanged. This lets the demo CLI list real running
// processes without requiring a full platform accessibility backend —
// useful on a non-macOS development machine, or any host where only
// process discovery needs to be real.
type ProcessEnumerator struct {
	AXPort
}

// NewProcessEnumerator wraps backend so RunningApplications and
// FrontmostApplication report real OS processes.
func NewProcessEnumerator(backend AXPort) *ProcessEnumerator {
	return &ProcessEnumerator{AXPort: backend}
}

// RunningApplications lists every process gopsutil can enumerate on
// the current host. Bundle identifiers are not a macOS concept outside
// the real AX API, so BundleID is left empty; callers that need
// bundle-based allow/deny filtering (§4.3) should wrap a platform
// AXPort instead.
func (p *ProcessEnumerator) RunningApplications() ([]AppInfo, error) {
	procs, err := process.ProcessesWithContext(context.Background())
	if err != nil {
		return nil, err
	}

	apps := make([]AppInfo, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		exe, _ := proc.Exe()
		running, _ := proc.IsRunning()
		apps = append(apps, AppInfo{
			PID:        int(proc.Pid),
			Name:       name,
			Path:       exe,
			Terminated: !running,
		})
	}
	return apps, nil
}

// FrontmostApplication has no general cross-platform equivalent to
// macOS's notion of the frontmost app, so it reports false (no
// frontmost application known) rather than guessing.
func (p *ProcessEnumerator) FrontmostApplication() (AppInfo, bool, error) {
	return AppInfo{}, false, nil
}
