// Package observer implements the notification observer center (§4.5):
// a single mediator enforcing at most one native observer per process
// and at most one native registration per (process, notification),
// fanning a platform callback out to any number of subscribed
// handlers.
package observer

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/axengine/internal/axerrors"
	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/model"
)

// SubscriptionToken identifies one live subscription.
type SubscriptionToken string

// Handler receives a fired notification. elementBrief is the firing
// element's AXRole string, or empty when it could not be read.
type Handler func(pid int, notification string, elementBrief string, info map[string]model.AttributeValue)

type subscriptionKey struct {
	pid          int
	global       bool
	notification string
}

type handlerEntry struct {
	token   SubscriptionToken
	handler Handler
}

type pidState struct {
	observer      axport.ObserverHandle
	runLoopSource axport.RunLoopSource
	notifications map[string]axport.NativeRef // notification -> native target currently registered
}

type callbackEvent struct {
	pid          int
	ref          axport.NativeRef
	notification string
	userInfo     map[string]any
}

// Center is the process-wide notification multiplexer. Construct one
// per engine instance and call Run in its own goroutine — this is the
// "coordinating executor" the platform callback hops onto before
// fan-out (§5), modeled the way the teacher's websocket Hub runs one
// loop goroutine fed by channels rather than locking across call
// sites.
type Center struct {
	port axport.AXPort
	log  zerolog.Logger

	mu            sync.Mutex
	handlersByKey map[subscriptionKey][]handlerEntry
	tokenToKey    map[SubscriptionToken]subscriptionKey
	pidStates     map[int]*pidState

	events chan callbackEvent
	done   chan struct{}

	entropy *ulid.MonotonicEntropy
	entropyMu sync.Mutex
}

func New(port axport.AXPort, log zerolog.Logger) *Center {
	return &Center{
		port:          port,
		log:           log.With().Str("component", "observerCenter").Logger(),
		handlersByKey: map[subscriptionKey][]handlerEntry{},
		tokenToKey:    map[SubscriptionToken]subscriptionKey{},
		pidStates:     map[int]*pidState{},
		events:        make(chan callbackEvent, 64),
		done:          make(chan struct{}),
		entropy:       ulid.Monotonic(rand.Reader, 0),
	}
}

// Run processes fired notifications on the coordinating executor until
// Stop is called. It must run in its own goroutine.
func (c *Center) Run() {
	for {
		select {
		case ev := <-c.events:
			c.dispatch(ev)
		case <-c.done:
			return
		}
	}
}

// Stop ends Run's loop. It does not unsubscribe anything.
func (c *Center) Stop() {
	close(c.done)
}

func (c *Center) newToken() SubscriptionToken {
	c.entropyMu.Lock()
	defer c.entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy)
	return SubscriptionToken(id.String())
}

// Subscribe registers handler for notification on pid (nil = global,
// system-wide scope) and, if element is non-nil, scopes the native
// registration to that element instead of the application element for
// pid. Re-subscribing to an already-registered (pid, notification)
// key only grows the handler list; no second native call is made.
func (c *Center) Subscribe(pid *int, element axport.NativeRef, notification string, handler Handler) (SubscriptionToken, *axerrors.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.keyFor(pid, notification)
	token := c.newToken()

	if err := c.ensureNativeRegistration(key, element); err != nil {
		return "", err
	}

	c.handlersByKey[key] = append(c.handlersByKey[key], handlerEntry{token: token, handler: handler})
	c.tokenToKey[token] = key
	return token, nil
}

// keyFor builds the subscription key: pid == nil means global.
func (c *Center) keyFor(pid *int, notification string) subscriptionKey {
	if pid == nil {
		return subscriptionKey{global: true, notification: notification}
	}
	return subscriptionKey{pid: *pid, notification: notification}
}

// ensureNativeRegistration creates the native observer for the key's
// pid if needed and adds the native notification registration if this
// is the first handler for that key — at most one native observer per
// process, at most one registration per (pid, notification).
func (c *Center) ensureNativeRegistration(key subscriptionKey, element axport.NativeRef) *axerrors.Error {
	if len(c.handlersByKey[key]) > 0 {
		return nil // already registered; just add a handler
	}

	pid := key.pid
	state, ok := c.pidStates[pid]
	if !ok {
		observerHandle, err := c.port.CreateObserver(pid, c.nativeCallback)
		if err != nil {
			return axerrors.Wrap(err, axerrors.KindObservationFailed, "observer.subscribe")
		}
		src := c.port.RunLoopSourceFor(observerHandle)
		if err := c.port.AttachRunLoopSource(src); err != nil {
			_ = c.port.DestroyObserver(observerHandle)
			return axerrors.Wrap(err, axerrors.KindObservationFailed, "observer.subscribe")
		}
		state = &pidState{observer: observerHandle, runLoopSource: src, notifications: map[string]axport.NativeRef{}}
		c.pidStates[pid] = state
	}

	if _, already := state.notifications[key.notification]; already {
		return nil
	}

	target := element
	if target == nil {
		if key.global {
			target = c.port.SystemWideElement()
		} else {
			appRef, err := c.port.ApplicationElement(pid)
			if err != nil {
				return axerrors.Wrap(err, axerrors.KindObservationFailed, "observer.subscribe")
			}
			target = appRef
		}
	}

	if err := c.port.AddNotification(state.observer, target, key.notification); err != nil {
		return axerrors.Wrap(err, axerrors.KindObservationFailed, "observer.subscribe")
	}
	state.notifications[key.notification] = target
	return nil
}

// Unsubscribe removes the handler for token. If its key's handler list
// becomes empty, the native registration is removed; if the pid then
// has no remaining registrations, its native observer and run-loop
// source are torn down.
func (c *Center) Unsubscribe(token SubscriptionToken) *axerrors.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.tokenToKey[token]
	if !ok {
		return axerrors.New(axerrors.KindTokenNotFound, "observer.unsubscribe", fmt.Sprintf("unknown token %q", token))
	}
	c.removeHandler(key, token)
	return nil
}

func (c *Center) removeHandler(key subscriptionKey, token SubscriptionToken) {
	delete(c.tokenToKey, token)
	handlers := c.handlersByKey[key]
	for i, h := range handlers {
		if h.token == token {
			handlers = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	if len(handlers) == 0 {
		delete(c.handlersByKey, key)
		c.teardownKey(key)
		return
	}
	c.handlersByKey[key] = handlers
}

// teardownKey removes the native registration for key and, if its pid
// has no remaining registrations, destroys the native observer.
func (c *Center) teardownKey(key subscriptionKey) {
	state, ok := c.pidStates[key.pid]
	if !ok {
		return
	}
	if target, registered := state.notifications[key.notification]; registered {
		_ = c.port.RemoveNotification(state.observer, target, key.notification)
		delete(state.notifications, key.notification)
	}
	if len(state.notifications) == 0 {
		_ = c.port.DetachRunLoopSource(state.runLoopSource)
		_ = c.port.DestroyObserver(state.observer)
		delete(c.pidStates, key.pid)
	}
}

// RemoveAllFor unsubscribes every handler registered for pid (both its
// specific-pid keys; global keys are untouched).
func (c *Center) RemoveAllFor(pid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.handlersByKey {
		if key.global || key.pid != pid {
			continue
		}
		for _, h := range append([]handlerEntry(nil), c.handlersByKey[key]...) {
			c.removeHandler(key, h.token)
		}
	}
}

// RemoveAll unsubscribes every handler across every pid and the global
// scope.
func (c *Center) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.handlersByKey {
		for _, h := range append([]handlerEntry(nil), c.handlersByKey[key]...) {
			c.removeHandler(key, h.token)
		}
	}
}

// IsRegistered reports whether any handler is currently registered for
// (pid, notification); pid == nil checks the global key.
func (c *Center) IsRegistered(pid *int, notification string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.keyFor(pid, notification)
	return len(c.handlersByKey[key]) > 0
}

// nativeCallback is handed to AXPort.CreateObserver. It runs on
// whatever thread the platform uses and must not touch Center state
// directly — it only enqueues the event for Run to process on the
// coordinating executor.
func (c *Center) nativeCallback(pid int, element axport.NativeRef, notification string, userInfo map[string]any) {
	select {
	case c.events <- callbackEvent{pid: pid, ref: element, notification: notification, userInfo: userInfo}:
	default:
		c.log.Warn().Int("pid", pid).Str("notification", notification).Msg("observer event dropped: channel full")
	}
}

// dispatch looks up both the specific-key and global-key handler sets
// for ev and invokes both — a handler registered under both keys fires
// twice, by design (§4.5): fan-out is keyed, not deduplicated by
// handler identity.
func (c *Center) dispatch(ev callbackEvent) {
	c.mu.Lock()
	specific := append([]handlerEntry(nil), c.handlersByKey[subscriptionKey{pid: ev.pid, notification: ev.notification}]...)
	global := append([]handlerEntry(nil), c.handlersByKey[subscriptionKey{global: true, notification: ev.notification}]...)
	c.mu.Unlock()

	brief := ""
	if ev.ref != nil {
		if role, err := c.port.CopyAttributeValue(ev.ref, "AXRole"); err == nil {
			if s, ok := role.(string); ok {
				brief = s
			}
		}
	}
	info := map[string]model.AttributeValue{}

	for _, h := range specific {
		h.handler(ev.pid, ev.notification, brief, info)
	}
	for _, h := range global {
		h.handler(ev.pid, ev.notification, brief, info)
	}
}
