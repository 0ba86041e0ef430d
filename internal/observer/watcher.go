package observer

import (
	"sync"

	"github.com/corvidlabs/axengine/internal/axerrors"
	"github.com/corvidlabs/axengine/internal/axport"
)

// Watcher is a user-facing scoped object bound to exactly one
// subscription. Its token is its sole invariant: Stop is idempotent,
// matching §4.5's "destructor (or explicit stop) unsubscribes"
// requirement — Go has no destructors, so callers are expected to
// `defer watcher.Stop()`; Stop tolerates being called more than once.
type Watcher struct {
	mu      sync.Mutex
	center  *Center
	token   SubscriptionToken
	stopped bool
}

// NewWatcher subscribes handler on center and returns a façade over
// the resulting token.
func NewWatcher(center *Center, pid *int, element axport.NativeRef, notification string, handler Handler) (*Watcher, *axerrors.Error) {
	token, err := center.Subscribe(pid, element, notification, handler)
	if err != nil {
		return nil, err
	}
	return &Watcher{center: center, token: token}, nil
}

// Stop unsubscribes, if it has not already. Safe to call multiple
// times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	_ = w.center.Unsubscribe(w.token)
}

// Token exposes the underlying subscription token, mainly for tests
// and diagnostics; callers driving normal subscribe/unsubscribe flows
// should use Stop instead of reaching for the token directly.
func (w *Watcher) Token() SubscriptionToken {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token
}
