// Package axport defines the narrow platform capability the engine
// consumes (§6) and never implements: AXPort. The real macOS
// implementation lives outside this module (it would wrap
// AXUIElementRef/AXObserverRef/CFRunLoop via cgo); what ships here is
// the interface plus a FakeAXPort used by every other package's tests,
// and a gopsutil-backed process source used by the demo CLI when no
// platform backend is wired in.
package axport

// NativeRef is an opaque handle to a native AX element, the system-wide
// element, or an application element. Implementations must make it
// comparable (e.g. a pointer or small struct of identifiers) so the
// value unwrapper's cycle guard and the element handle's identity
// checks work with plain map keys.
type NativeRef any

// AppInfo describes one running application as AXPort's process
// enumeration reports it.
type AppInfo struct {
	PID        int
	BundleID   string
	Name       string
	Path       string
	Terminated bool
	Frontmost  bool
}

// ObserverHandle is an opaque native notification-observer handle, one
// per observed process.
type ObserverHandle any

// RunLoopSource is an opaque handle to the native run-loop source a
// notification observer must be attached to before it delivers
// callbacks, and detached from during teardown.
type RunLoopSource any

// NotificationCallback is invoked by the platform on whatever thread it
// uses; the observer center is responsible for hopping back onto the
// coordinating executor before fan-out (§5).
type NotificationCallback func(pid int, element NativeRef, notification string, userInfo map[string]any)

// AXPort is the complete consumed capability surface (§6). The engine
// never implements it; implementations translate these calls into
// platform accessibility API invocations.
type AXPort interface {
	// Process enumeration.
	RunningApplications() ([]AppInfo, error)
	FrontmostApplication() (AppInfo, bool, error)

	// Element acquisition.
	SystemWideElement() NativeRef
	ApplicationElement(pid int) (NativeRef, error)
	ElementAtPoint(x, y float64) (NativeRef, error)

	// Attribute access.
	CopyAttributeValue(ref NativeRef, attribute string) (any, error)
	SetAttributeValue(ref NativeRef, attribute string, value any) error
	CopyParameterizedAttributeValue(ref NativeRef, attribute string, param any) (any, error)
	AttributeNames(ref NativeRef) ([]string, error)
	ParameterizedAttributeNames(ref NativeRef) ([]string, error)

	// Actions.
	ActionNames(ref NativeRef) ([]string, error)
	PerformAction(ref NativeRef, action string) error

	// Notifications.
	CreateObserver(pid int, callback NotificationCallback) (ObserverHandle, error)
	AddNotification(observer ObserverHandle, ref NativeRef, notification string) error
	RemoveNotification(observer ObserverHandle, ref NativeRef, notification string) error
	DestroyObserver(observer ObserverHandle) error
	RunLoopSourceFor(observer ObserverHandle) RunLoopSource
	AttachRunLoopSource(src RunLoopSource) error
	DetachRunLoopSource(src RunLoopSource) error

	// Permission.
	IsProcessTrusted() bool
	PromptForAccessIfNeeded() bool
}

// ErrNoValue mirrors the native "no value" result a missing-but-legal
// attribute read reports (maps to axerrors.KindAttributeNotReadable).
type ErrNoValue struct{ Attribute string }

func (e ErrNoValue) Error() string { return "ax: no value for attribute " + e.Attribute }

// ErrNotFound mirrors a request for an application/element the port
// cannot resolve.
type ErrNotFound struct{ What string }

func (e ErrNotFound) Error() string { return "ax: not found: " + e.What }

// ErrNativeCode carries the platform's raw error code alongside a
// human-readable message, letting callers translate it through
// axerrors.FromNativeCode instead of collapsing every unrecognized
// failure to KindInternal.
type ErrNativeCode struct {
	Code int
	Msg  string
}

func (e ErrNativeCode) Error() string { return e.Msg }
