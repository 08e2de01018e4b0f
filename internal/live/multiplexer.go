// Package live keeps a tree of store subscriptions in step with a changing
// membership: one parent stream lists the keys, and every key gets its own
// child stream. Child values survive Stop so a restarted tree does not blank
// out data that has not changed.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"volunteer-hub/internal/docstore"
)

type State int

const (
	Unsubscribed State = iota
	Subscribing
	Live
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Live:
		return "live"
	default:
		return "unsubscribed"
	}
}

// ParentOpener opens the stream whose snapshot ids are the membership.
type ParentOpener func(ctx context.Context, fn docstore.Listener) (docstore.Subscription, error)

// ChildOpener opens the stream for one member key.
type ChildOpener func(ctx context.Context, key string, fn docstore.Listener) (docstore.Subscription, error)

// Decoder turns a child snapshot into a value. ok=false means the key has no
// value right now (e.g. the document does not exist) and clears the cached
// one. A non-nil error keeps the previous value.
type Decoder[V any] func(key string, snap docstore.Snapshot) (v V, ok bool, err error)

// Tracker is notified whenever a subscription is opened or released.
type Tracker interface {
	SubscriptionOpened(kind string)
	SubscriptionClosed(kind string)
}

type Config[V any] struct {
	// Name labels logs and tracked subscriptions.
	Name string
	// Parent is optional; without it membership comes from ReconcileKeys.
	Parent ParentOpener
	Child  ChildOpener
	Decode Decoder[V]
	// OnChange is called after every applied change, outside the lock.
	OnChange func()
	Tracker  Tracker
	Logger   *slog.Logger
}

// View is a consistent copy of a multiplexer's state.
type View[V any] struct {
	State  State
	Parent []docstore.Document
	Keys   []string
	Values map[string]V
	Err    error
}

// Pending reports whether key is a member without a value yet.
func (v View[V]) Pending(key string) bool {
	_, ok := v.Values[key]
	return !ok && slices.Contains(v.Keys, key)
}

type child struct {
	sub   docstore.Subscription
	token uint64
}

type Multiplexer[V any] struct {
	cfg Config[V]
	log *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	state     State
	gen       uint64
	nextToken uint64
	parentSub docstore.Subscription
	children  map[string]*child

	parent []docstore.Document
	keys   []string
	values map[string]V

	// parentErr is cleared by the next good parent snapshot, childErrs[key]
	// by the next good snapshot of that key or its eviction
	parentErr error
	childErrs map[string]error
}

func New[V any](cfg Config[V]) *Multiplexer[V] {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Multiplexer[V]{
		cfg:       cfg,
		log:       log.With(slog.String("multiplexer", cfg.Name)),
		children:  make(map[string]*child),
		values:    make(map[string]V),
		childErrs: make(map[string]error),
	}
}

// Start opens the parent stream, or re-attaches children for the current
// membership when there is no parent. Starting a running multiplexer is a
// no-op.
func (m *Multiplexer[V]) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Unsubscribed {
		return nil
	}
	m.ctx = ctx
	m.gen++

	if m.cfg.Parent == nil {
		m.state = Live
		m.reconcileLocked(m.keys)
		return nil
	}

	m.state = Subscribing
	gen := m.gen
	sub, err := m.cfg.Parent(ctx, func(snap docstore.Snapshot) { m.applyParent(gen, snap) })
	if err != nil {
		m.state = Unsubscribed
		m.parentErr = err
		return fmt.Errorf("%s: open parent: %w", m.cfg.Name, err)
	}
	m.parentSub = sub
	m.opened("parent")
	return nil
}

// Stop releases every subscription. Cached values, membership and the parent
// value are kept for the next Start.
func (m *Multiplexer[V]) Stop() {
	m.mu.Lock()
	m.stopLocked()
	m.mu.Unlock()
}

// Close releases every subscription and clears all cached state.
func (m *Multiplexer[V]) Close() {
	m.mu.Lock()
	m.stopLocked()
	m.parent = nil
	m.keys = nil
	m.values = make(map[string]V)
	m.parentErr = nil
	clear(m.childErrs)
	m.mu.Unlock()
	m.notify()
}

func (m *Multiplexer[V]) stopLocked() {
	if m.state == Unsubscribed {
		return
	}
	m.gen++
	if m.parentSub != nil {
		m.parentSub.Remove()
		m.parentSub = nil
		m.closed("parent")
	}
	for key, c := range m.children {
		c.sub.Remove()
		delete(m.children, key)
		m.closed("child")
	}
	m.state = Unsubscribed
}

// ReconcileKeys sets the membership of a multiplexer without a parent
// stream. While stopped the keys are only recorded, and values of dropped
// keys are evicted.
func (m *Multiplexer[V]) ReconcileKeys(keys []string) {
	m.mu.Lock()
	if m.state == Unsubscribed {
		m.keys = slices.Clone(keys)
		m.evictLocked(keys)
	} else {
		m.reconcileLocked(keys)
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Multiplexer[V]) applyParent(gen uint64, snap docstore.Snapshot) {
	m.mu.Lock()
	if gen != m.gen || m.state == Unsubscribed {
		m.mu.Unlock()
		return
	}
	if snap.Err != nil {
		m.parentErr = snap.Err
		m.mu.Unlock()
		m.log.Warn("parent stream error", slog.String("error", snap.Err.Error()))
		m.notify()
		return
	}
	m.parentErr = nil
	m.state = Live
	m.parent = snap.Docs
	m.reconcileLocked(snap.IDs())
	m.mu.Unlock()
	m.notify()
}

// reconcileLocked diffs the membership: children of removed keys are
// released and evicted, new keys get a child, existing children stay.
func (m *Multiplexer[V]) reconcileLocked(keys []string) {
	m.evictLocked(keys)
	for _, key := range keys {
		if _, ok := m.children[key]; ok {
			continue
		}
		m.openChildLocked(key)
	}
	m.keys = slices.Clone(keys)
}

func (m *Multiplexer[V]) evictLocked(keys []string) {
	current := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		current[k] = struct{}{}
	}
	for key, c := range m.children {
		if _, ok := current[key]; ok {
			continue
		}
		c.sub.Remove()
		delete(m.children, key)
		m.closed("child")
	}
	for key := range m.values {
		if _, ok := current[key]; !ok {
			delete(m.values, key)
		}
	}
	for key := range m.childErrs {
		if _, ok := current[key]; !ok {
			delete(m.childErrs, key)
		}
	}
}

func (m *Multiplexer[V]) openChildLocked(key string) {
	m.nextToken++
	token := m.nextToken
	sub, err := m.cfg.Child(m.ctx, key, func(snap docstore.Snapshot) { m.applyChild(key, token, snap) })
	if err != nil {
		// the next reconcile retries the open
		m.childErrs[key] = fmt.Errorf("%s: open child %s: %w", m.cfg.Name, key, err)
		m.log.Warn("failed to open child stream", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	m.children[key] = &child{sub: sub, token: token}
	delete(m.childErrs, key)
	m.opened("child")
}

func (m *Multiplexer[V]) applyChild(key string, token uint64, snap docstore.Snapshot) {
	m.mu.Lock()
	c, ok := m.children[key]
	if !ok || c.token != token {
		m.mu.Unlock()
		return
	}
	if snap.Err != nil {
		m.childErrs[key] = snap.Err
		m.mu.Unlock()
		m.log.Warn("child stream error", slog.String("key", key), slog.String("error", snap.Err.Error()))
		m.notify()
		return
	}

	delete(m.childErrs, key)
	v, has, err := m.cfg.Decode(key, snap)
	if err != nil {
		m.mu.Unlock()
		m.log.Error("dropping undecodable child snapshot", slog.String("key", key), slog.String("error", err.Error()))
		m.notify()
		return
	}
	if has {
		m.values[key] = v
	} else {
		delete(m.values, key)
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Multiplexer[V]) notify() {
	if m.cfg.OnChange != nil {
		m.cfg.OnChange()
	}
}

func (m *Multiplexer[V]) opened(role string) {
	if m.cfg.Tracker != nil {
		m.cfg.Tracker.SubscriptionOpened(m.cfg.Name + "_" + role)
	}
}

func (m *Multiplexer[V]) closed(role string) {
	if m.cfg.Tracker != nil {
		m.cfg.Tracker.SubscriptionClosed(m.cfg.Name + "_" + role)
	}
}

func (m *Multiplexer[V]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Value returns the cached value for key.
func (m *Multiplexer[V]) Value(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// ActiveChildren returns the number of open child subscriptions.
func (m *Multiplexer[V]) ActiveChildren() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.children)
}

func (m *Multiplexer[V]) View() View[V] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View[V]{
		State:  m.state,
		Parent: slices.Clone(m.parent),
		Keys:   slices.Clone(m.keys),
		Values: maps.Clone(m.values),
		Err:    m.errLocked(),
	}
}

// errLocked returns the parent stream error, or else the child error of the
// first failing key in key order.
func (m *Multiplexer[V]) errLocked() error {
	if m.parentErr != nil {
		return m.parentErr
	}
	for _, key := range slices.Sorted(maps.Keys(m.childErrs)) {
		return m.childErrs[key]
	}
	return nil
}

// CollectionParent streams q as the membership source.
func CollectionParent(s docstore.Subscriber, q docstore.Query) ParentOpener {
	return func(ctx context.Context, fn docstore.Listener) (docstore.Subscription, error) {
		return s.Subscribe(ctx, q, fn)
	}
}

// CollectionChildren streams, per key, the collection at pathFor(key).
func CollectionChildren(s docstore.Subscriber, pathFor func(key string) string, orderBy string) ChildOpener {
	return func(ctx context.Context, key string, fn docstore.Listener) (docstore.Subscription, error) {
		return s.Subscribe(ctx, docstore.Query{Collection: pathFor(key), OrderBy: orderBy}, fn)
	}
}

// DocumentChildren streams, per key, the document at pathFor(key).
func DocumentChildren(s docstore.Subscriber, pathFor func(key string) string) ChildOpener {
	return func(ctx context.Context, key string, fn docstore.Listener) (docstore.Subscription, error) {
		return s.SubscribeDocument(ctx, pathFor(key), fn)
	}
}
