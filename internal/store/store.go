// Package store implements the shared mutable state of the coordination
// engine on top of an in-memory TTL cache. Every entity is an explicit
// struct serialized to JSON at the store boundary and written under its own
// key. Single-key operations are atomic, which is what the lock, dedup, and
// transition protocols rely on; the status pair lives under one key so
// readers can see a stale pair but never a torn one.
package store

import (
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/paresiga/go-traffic-backend/internal/domain"
)

// Store keys. Per-user entries get the user appended to the prefix.
const (
	keyStatus     = "traffic:status"
	keyLock       = "traffic:lock"
	keyTransition = "traffic:transition"
	keyWeather    = "weather:snapshot"
	keyAdSent     = "ads:last"
	keyWindowBase = "transition:base"

	prefixThrottle = "throttle:"
	prefixConfirm  = "confirm:"
	prefixSeen     = "seen:"
)

// Protocol windows. These are contracts of the coordination protocol rather
// than tunables, so they live here next to the keys they guard.
const (
	// LockTTL bounds how long a crashed holder can block mutations.
	LockTTL = 30 * time.Second
	// ThrottleTTL keeps per-user action timestamps around.
	ThrottleTTL = 5 * time.Minute
	// ConfirmationTTL is the window to answer !sim/!nao.
	ConfirmationTTL = 5 * time.Minute
	// TransitionTTL garbage-collects transitions nobody ever completed.
	TransitionTTL = time.Hour
	// WeatherTTL is the freshness window of the cached snapshot.
	WeatherTTL = 30 * time.Minute
	// AdIntervalTTL is the minimum gap between advertisement inserts.
	AdIntervalTTL = 30 * time.Minute
	// SeenTTL covers webhook redelivery of the same message id.
	SeenTTL = 10 * time.Minute
	// WindowBaseTTL expires user feedback on the transition window.
	WindowBaseTTL = 12 * time.Hour
)

// Store is the process-wide shared state. Safe for concurrent use.
type Store struct {
	c *gocache.Cache
}

// New returns an empty store with background expiry sweeping.
func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, 5*time.Minute)}
}

func (s *Store) set(key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		// All stored types are plain structs; a marshal failure here is a
		// programming error and must not silently drop state.
		panic(err)
	}
	s.c.Set(key, b, ttl)
}

// setIfAbsent writes the entry only when the key is free. Returns false when
// a live entry already exists. Atomic: go-cache runs Add under its mutex.
func (s *Store) setIfAbsent(key string, v any, ttl time.Duration) bool {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return s.c.Add(key, b, ttl) == nil
}

func (s *Store) get(key string, out any) bool {
	v, ok := s.c.Get(key)
	if !ok {
		return false
	}
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

// --- Status pair ---

// StatusPair returns the committed pair, if one exists.
func (s *Store) StatusPair() (domain.StatusPair, bool) {
	var p domain.StatusPair
	ok := s.get(keyStatus, &p)
	return p, ok
}

// SetStatusPair commits a pair. The record never expires and is only written
// while holding the status lock.
func (s *Store) SetStatusPair(p domain.StatusPair) {
	s.set(keyStatus, p, gocache.NoExpiration)
}

// EnsureStatusPair returns the committed pair, seeding def on first use.
func (s *Store) EnsureStatusPair(def domain.StatusPair) domain.StatusPair {
	s.setIfAbsent(keyStatus, def, gocache.NoExpiration)
	p, _ := s.StatusPair()
	return p
}

// --- Status lock ---

// AcquireStatusLock takes the global mutation lock without blocking.
// The TTL guarantees forward progress if a holder crashes mid-operation.
func (s *Store) AcquireStatusLock() bool {
	return s.c.Add(keyLock, []byte("1"), LockTTL) == nil
}

// ReleaseStatusLock frees the mutation lock.
func (s *Store) ReleaseStatusLock() {
	s.c.Delete(keyLock)
}

// --- Per-user action throttle ---

type throttleEntry struct {
	LastActionAt time.Time `json:"last_action_at"`
}

// LastAction returns when the user last committed a mutating action.
func (s *Store) LastAction(user string) (time.Time, bool) {
	var e throttleEntry
	ok := s.get(prefixThrottle+user, &e)
	return e.LastActionAt, ok
}

// TouchAction records a committed mutating action for the user.
func (s *Store) TouchAction(user string, now time.Time) {
	s.set(prefixThrottle+user, throttleEntry{LastActionAt: now}, ThrottleTTL)
}

// --- Pending confirmations ---

// Confirmation returns the user's pending confirmation, if any.
func (s *Store) Confirmation(user string) (domain.PendingConfirmation, bool) {
	var c domain.PendingConfirmation
	ok := s.get(prefixConfirm+user, &c)
	return c, ok
}

// PutConfirmation stores a confirmation, replacing any stale one for the user.
func (s *Store) PutConfirmation(c domain.PendingConfirmation) {
	s.set(prefixConfirm+c.UserID, c, ConfirmationTTL)
}

// DeleteConfirmation clears the user's pending confirmation.
func (s *Store) DeleteConfirmation(user string) {
	s.c.Delete(prefixConfirm + user)
}

// --- Pending transition ---

// Transition returns the active transition, if any.
func (s *Store) Transition() (domain.PendingTransition, bool) {
	var t domain.PendingTransition
	ok := s.get(keyTransition, &t)
	return t, ok
}

// BeginTransition registers t as the active transition. Returns false when
// another transition is already active; the single key is what enforces
// at-most-one transitioning endpoint.
func (s *Store) BeginTransition(t domain.PendingTransition) bool {
	return s.setIfAbsent(keyTransition, t, TransitionTTL)
}

// ClearTransition removes the active transition. Idempotent.
func (s *Store) ClearTransition() {
	s.c.Delete(keyTransition)
}

// --- Weather snapshot ---

// Weather returns the cached snapshot, if still fresh.
func (s *Store) Weather() (domain.WeatherSnapshot, bool) {
	var w domain.WeatherSnapshot
	ok := s.get(keyWeather, &w)
	return w, ok
}

// PutWeather caches a snapshot for the freshness window.
func (s *Store) PutWeather(w domain.WeatherSnapshot) {
	s.set(keyWeather, w, WeatherTTL)
}

// --- Advertisement drip ---

// TryMarkAdSent claims the advertisement slot. Returns true at most once per
// interval across the process; the TTL entry replaces the old in-process
// "last advertisement" global.
func (s *Store) TryMarkAdSent(now time.Time) bool {
	return s.setIfAbsent(keyAdSent, throttleEntry{LastActionAt: now}, AdIntervalTTL)
}

// --- Webhook dedup ---

// MarkSeen claims a gateway message id. Returns false when the id was
// already processed recently (webhook redelivery).
func (s *Store) MarkSeen(messageID string) bool {
	return s.setIfAbsent(prefixSeen+messageID, throttleEntry{}, SeenTTL)
}

// --- Transition window feedback ---

type windowEntry struct {
	Base time.Duration `json:"base"`
}

// WindowBase returns the feedback-adjusted base transition window, if set.
func (s *Store) WindowBase() (time.Duration, bool) {
	var e windowEntry
	ok := s.get(keyWindowBase, &e)
	return e.Base, ok
}

// SetWindowBase stores a feedback-adjusted base transition window.
func (s *Store) SetWindowBase(d time.Duration) {
	s.set(keyWindowBase, windowEntry{Base: d}, WindowBaseTTL)
}
