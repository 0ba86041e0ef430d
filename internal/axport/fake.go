package axport

import (
	"fmt"
	"sync"
)

// FakeElement is a node in a hand-built fake accessibility tree, used
// by every other package's tests in place of a real AXUIElementRef.
type FakeElement struct {
	ID         int
	PID        int
	Attrs      map[string]any
	ParamAttrs map[string]any
	Actions    map[string]bool
	ActionErrs map[string]error
	Parent     *FakeElement
	Children   []*FakeElement
}

// NewFakeElement builds a leaf/branch node. attrs keys are native
// attribute names (e.g. "AXRole", "AXTitle").
func NewFakeElement(pid int, attrs map[string]any, actions ...string) *FakeElement {
	actionSet := make(map[string]bool, len(actions))
	for _, a := range actions {
		actionSet[a] = true
	}
	return &FakeElement{
		PID:        pid,
		Attrs:      attrs,
		ParamAttrs: map[string]any{},
		Actions:    actionSet,
		ActionErrs: map[string]error{},
	}
}

// AddChild appends a child and wires its Parent back-pointer — the
// fake is the only place a parent pointer is stored; real AXPort
// implementations never cache one (§9: child→parent goes through the
// platform API every call).
func (e *FakeElement) AddChild(child *FakeElement) *FakeElement {
	child.Parent = e
	e.Children = append(e.Children, child)
	return e
}

type fakeObserverState struct {
	pid           int
	callback      NotificationCallback
	registrations map[string]map[*FakeElement]bool // notification -> set of target elements
	destroyed     bool
}

// FakeAXPort is an in-memory AXPort implementation: a map of pid to
// application root element, plus call counters the observer-center
// tests assert against (§8: "subscribing K handlers... yields exactly
// one native add_notification call").
type FakeAXPort struct {
	mu sync.Mutex

	apps        []AppInfo
	roots       map[int]*FakeElement
	focused     map[int]*FakeElement
	systemWide  *FakeElement
	pointHits   func(x, y float64) *FakeElement
	trusted     bool

	observers map[int]*fakeObserverState

	AddNotificationCalls    int
	RemoveNotificationCalls int
	CreateObserverCalls     int
	DestroyObserverCalls    int
}

func NewFakeAXPort() *FakeAXPort {
	return &FakeAXPort{
		roots:      map[int]*FakeElement{},
		focused:    map[int]*FakeElement{},
		observers:  map[int]*fakeObserverState{},
		systemWide: NewFakeElement(0, map[string]any{"AXRole": "AXSystemWide"}),
		trusted:    true,
	}
}

func (f *FakeAXPort) AddApp(info AppInfo, root *FakeElement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = append(f.apps, info)
	f.roots[info.PID] = root
}

func (f *FakeAXPort) SetFocused(pid int, el *FakeElement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused[pid] = el
}

func (f *FakeAXPort) SetPointHit(fn func(x, y float64) *FakeElement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointHits = fn
}

func (f *FakeAXPort) SetTrusted(trusted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trusted = trusted
}

func (f *FakeAXPort) RunningApplications() ([]AppInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AppInfo, len(f.apps))
	copy(out, f.apps)
	return out, nil
}

func (f *FakeAXPort) FrontmostApplication() (AppInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.Frontmost && !a.Terminated {
			return a, true, nil
		}
	}
	return AppInfo{}, false, nil
}

func (f *FakeAXPort) SystemWideElement() NativeRef {
	return f.systemWide
}

func (f *FakeAXPort) ApplicationElement(pid int) (NativeRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	root, ok := f.roots[pid]
	if !ok {
		return nil, ErrNotFound{What: fmt.Sprintf("application element for pid %d", pid)}
	}
	return root, nil
}

func (f *FakeAXPort) ElementAtPoint(x, y float64) (NativeRef, error) {
	f.mu.Lock()
	hit := f.pointHits
	f.mu.Unlock()
	if hit == nil {
		return nil, nil
	}
	el := hit(x, y)
	if el == nil {
		return nil, nil
	}
	return el, nil
}

func asFake(ref NativeRef) (*FakeElement, bool) {
	el, ok := ref.(*FakeElement)
	return el, ok
}

func (f *FakeAXPort) CopyAttributeValue(ref NativeRef, attribute string) (any, error) {
	el, ok := asFake(ref)
	if !ok || el == nil {
		return nil, ErrNotFound{What: "element"}
	}
	switch attribute {
	case "AXParent":
		if el.Parent == nil {
			return nil, ErrNoValue{Attribute: attribute}
		}
		return el.Parent, nil
	case "AXChildren":
		if len(el.Children) == 0 {
			return []any{}, nil
		}
		out := make([]any, len(el.Children))
		for i, c := range el.Children {
			out[i] = c
		}
		return out, nil
	}
	v, ok := el.Attrs[attribute]
	if !ok {
		return nil, ErrNoValue{Attribute: attribute}
	}
	return v, nil
}

func (f *FakeAXPort) SetAttributeValue(ref NativeRef, attribute string, value any) error {
	el, ok := asFake(ref)
	if !ok || el == nil {
		return ErrNotFound{What: "element"}
	}
	el.Attrs[attribute] = value
	return nil
}

func (f *FakeAXPort) CopyParameterizedAttributeValue(ref NativeRef, attribute string, param any) (any, error) {
	el, ok := asFake(ref)
	if !ok || el == nil {
		return nil, ErrNotFound{What: "element"}
	}
	v, ok := el.ParamAttrs[attribute]
	if !ok {
		return nil, ErrNoValue{Attribute: attribute}
	}
	return v, nil
}

func (f *FakeAXPort) AttributeNames(ref NativeRef) ([]string, error) {
	el, ok := asFake(ref)
	if !ok || el == nil {
		return nil, ErrNotFound{What: "element"}
	}
	names := make([]string, 0, len(el.Attrs))
	for k := range el.Attrs {
		names = append(names, k)
	}
	return names, nil
}

func (f *FakeAXPort) ParameterizedAttributeNames(ref NativeRef) ([]string, error) {
	el, ok := asFake(ref)
	if !ok || el == nil {
		return nil, ErrNotFound{What: "element"}
	}
	names := make([]string, 0, len(el.ParamAttrs))
	for k := range el.ParamAttrs {
		names = append(names, k)
	}
	return names, nil
}

func (f *FakeAXPort) ActionNames(ref NativeRef) ([]string, error) {
	el, ok := asFake(ref)
	if !ok || el == nil {
		return nil, ErrNotFound{What: "element"}
	}
	names := make([]string, 0, len(el.Actions))
	for k := range el.Actions {
		names = append(names, k)
	}
	return names, nil
}

func (f *FakeAXPort) PerformAction(ref NativeRef, action string) error {
	el, ok := asFake(ref)
	if !ok || el == nil {
		return ErrNotFound{What: "element"}
	}
	if err, failing := el.ActionErrs[action]; failing {
		return err
	}
	if !el.Actions[action] {
		return fmt.Errorf("ax: action %q not supported", action)
	}
	return nil
}

func (f *FakeAXPort) CreateObserver(pid int, callback NotificationCallback) (ObserverHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateObserverCalls++
	state := &fakeObserverState{pid: pid, callback: callback, registrations: map[string]map[*FakeElement]bool{}}
	f.observers[pid] = state
	return state, nil
}

func (f *FakeAXPort) AddNotification(observer ObserverHandle, ref NativeRef, notification string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddNotificationCalls++
	state, ok := observer.(*fakeObserverState)
	if !ok || state.destroyed {
		return ErrNotFound{What: "observer"}
	}
	el, _ := asFake(ref)
	set, ok := state.registrations[notification]
	if !ok {
		set = map[*FakeElement]bool{}
		state.registrations[notification] = set
	}
	set[el] = true
	return nil
}

func (f *FakeAXPort) RemoveNotification(observer ObserverHandle, ref NativeRef, notification string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RemoveNotificationCalls++
	state, ok := observer.(*fakeObserverState)
	if !ok {
		return ErrNotFound{What: "observer"}
	}
	el, _ := asFake(ref)
	if set, ok := state.registrations[notification]; ok {
		delete(set, el)
		if len(set) == 0 {
			delete(state.registrations, notification)
		}
	}
	return nil
}

func (f *FakeAXPort) DestroyObserver(observer ObserverHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DestroyObserverCalls++
	state, ok := observer.(*fakeObserverState)
	if !ok {
		return ErrNotFound{What: "observer"}
	}
	state.destroyed = true
	delete(f.observers, state.pid)
	return nil
}

func (f *FakeAXPort) RunLoopSourceFor(observer ObserverHandle) RunLoopSource { return observer }
func (f *FakeAXPort) AttachRunLoopSource(src RunLoopSource) error            { return nil }
func (f *FakeAXPort) DetachRunLoopSource(src RunLoopSource) error           { return nil }

func (f *FakeAXPort) IsProcessTrusted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trusted
}

func (f *FakeAXPort) PromptForAccessIfNeeded() bool {
	return f.IsProcessTrusted()
}

// Fire simulates the platform delivering a notification: it invokes
// the stored callback for pid iff (pid, notification, ref) is
// currently registered via AddNotification. Tests use this to drive
// the observer center's fan-out end to end.
func (f *FakeAXPort) Fire(pid int, ref NativeRef, notification string, userInfo map[string]any) {
	f.mu.Lock()
	state, ok := f.observers[pid]
	f.mu.Unlock()
	if !ok || state.destroyed {
		return
	}
	el, _ := asFake(ref)
	f.mu.Lock()
	set, registered := state.registrations[notification]
	_, matches := set[el]
	cb := state.callback
	f.mu.Unlock()
	if !registered || !matches {
		return
	}
	cb(pid, ref, notification, userInfo)
}
