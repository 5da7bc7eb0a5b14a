// Package services – StatusService
//
// This file implements StatusService, the component that owns the status
// state machine of the single-lane segment. Every mutation runs under the
// shared status lock, is throttled per user, re-validates the pair invariant
// before committing, and records closures that lasted long enough to matter.
//
// Observability: public mutating methods are OpenTelemetry-instrumented;
// spans carry the acting user and the affected endpoint.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/paresiga/go-traffic-backend/internal/domain"
	"github.com/paresiga/go-traffic-backend/internal/store"
)

const (
	// defaultConfirmGate is the minimum age of the current status before a
	// toggle commits without an explicit confirmation.
	defaultConfirmGate = 30 * time.Second
	// defaultThrottleGap is the minimum spacing between committed mutations
	// from the same user.
	defaultThrottleGap = 5 * time.Second
	// defaultMinClosure drops accidental flip-flops from the history.
	defaultMinClosure = 60 * time.Second
	// defaultBaseWindow is the transition window before any modifiers.
	defaultBaseWindow = 20 * time.Minute

	windowFloor = 10 * time.Minute
	windowCeil  = 30 * time.Minute

	// Feedback blending keeps the base inside a wider band than the final
	// window clamp, matching how operators actually report clearing times.
	feedbackFloor = 15 * time.Minute
	feedbackCeil  = 35 * time.Minute

	peakMultiplier   = 1.3
	rainMultiplier   = 1.5
	severeMultiplier = 2.0
)

// ClosureLog is the persistence dependency of StatusService: one append per
// completed closure. Failures are logged, never propagated, so a slow disk
// cannot wedge the state machine.
type ClosureLog interface {
	AppendClosure(ctx context.Context, endpoint domain.Endpoint, duration time.Duration, recordedAt time.Time) error
}

// StatusService coordinates all status mutations.
type StatusService struct {
	Store    *store.Store
	Closures ClosureLog
	Loc      *time.Location

	// Optional overrides, zero means default.
	ConfirmGate time.Duration
	ThrottleGap time.Duration
	MinClosure  time.Duration
	BaseWindow  time.Duration

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *StatusService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *StatusService) confirmGate() time.Duration {
	if s.ConfirmGate > 0 {
		return s.ConfirmGate
	}
	return defaultConfirmGate
}

func (s *StatusService) throttleGap() time.Duration {
	if s.ThrottleGap > 0 {
		return s.ThrottleGap
	}
	return defaultThrottleGap
}

func (s *StatusService) minClosure() time.Duration {
	if s.MinClosure > 0 {
		return s.MinClosure
	}
	return defaultMinClosure
}

func (s *StatusService) loc() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.UTC
}

// Current returns the committed pair with the active transition overlaid, so
// readers see TRANSICAO without the stored record ever holding it.
func (s *StatusService) Current(ctx context.Context) (domain.StatusPair, *domain.PendingTransition) {
	tr := otel.Tracer("services/StatusService")
	_, span := tr.Start(ctx, "Current")
	defer span.End()

	pair := s.Store.EnsureStatusPair(domain.NewStatusPair(s.now()))
	if t, ok := s.Store.Transition(); ok {
		pair = pair.WithState(t.Endpoint, domain.StateTransitioning)
		return pair, &t
	}
	return pair, nil
}

// ToggleOutcome describes a committed toggle.
type ToggleOutcome struct {
	Pair     domain.StatusPair
	Opened   domain.Endpoint
	Closed   domain.Endpoint
	Recorded bool
	Elapsed  time.Duration
}

// Toggle swaps right of way on behalf of user. When the current status is
// younger than the confirmation gate the swap is parked behind a pending
// confirmation and ErrConfirmationRequired is returned instead.
func (s *StatusService) Toggle(ctx context.Context, user string) (*ToggleOutcome, error) {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "Toggle",
		trace.WithAttributes(attribute.String("user.id", user)),
	)
	defer span.End()

	return s.toggle(ctx, user, false)
}

// toggle is the locked core shared by Toggle and the confirmation path.
// bypassGate skips the confirmation gate; the throttle is checked up front but
// only touched once a mutation actually commits, so a confirmation prompt
// never throttles its own !sim.
func (s *StatusService) toggle(ctx context.Context, user string, bypassGate bool) (*ToggleOutcome, error) {
	if !s.Store.AcquireStatusLock() {
		return nil, ErrLockBusy
	}
	defer s.Store.ReleaseStatusLock()

	now := s.now()
	if last, ok := s.Store.LastAction(user); ok && now.Sub(last) < s.throttleGap() {
		return nil, ErrThrottled
	}
	if _, ok := s.Store.Transition(); ok {
		return nil, ErrTransitionActive
	}

	pair := s.Store.EnsureStatusPair(domain.NewStatusPair(now))
	if err := pair.Validate(); err != nil {
		log.Error().Err(err).Msg("status pair failed validation before toggle")
		return nil, ErrInvalidStatus
	}

	closing := pair.OpenEndpoint()
	elapsed := now.Sub(pair.Get(closing).ChangedAt)

	if !bypassGate && elapsed < s.confirmGate() {
		s.Store.PutConfirmation(domain.PendingConfirmation{
			UserID:    user,
			Action:    domain.ConfirmToggle,
			CreatedAt: now,
		})
		return nil, ErrConfirmationRequired
	}

	next := pair.Flipped(now, user)
	if err := next.Validate(); err != nil {
		log.Error().Err(err).Msg("refusing to commit invalid status pair")
		return nil, ErrInvalidStatus
	}
	s.Store.SetStatusPair(next)
	s.Store.TouchAction(user, now)

	out := &ToggleOutcome{
		Pair:    next,
		Opened:  closing.Other(),
		Closed:  closing,
		Elapsed: elapsed,
	}
	if elapsed >= s.minClosure() {
		if err := s.Closures.AppendClosure(ctx, closing, elapsed, now); err != nil {
			log.Error().Err(err).Str("endpoint", string(closing)).Msg("closure append failed")
		} else {
			out.Recorded = true
		}
	}

	log.Info().
		Str("user", user).
		Str("opened", string(out.Opened)).
		Str("closed", string(out.Closed)).
		Dur("elapsed", elapsed).
		Msg("status toggled")
	return out, nil
}

// BeginTransition marks endpoint as closing down while traffic clears. The
// endpoint must currently hold right of way, and at most one transition can
// be active across both endpoints.
func (s *StatusService) BeginTransition(ctx context.Context, endpoint domain.Endpoint, user string) (*domain.PendingTransition, error) {
	tr := otel.Tracer("services/StatusService")
	_, span := tr.Start(ctx, "BeginTransition",
		trace.WithAttributes(
			attribute.String("user.id", user),
			attribute.String("endpoint", string(endpoint)),
		),
	)
	defer span.End()

	if !s.Store.AcquireStatusLock() {
		return nil, ErrLockBusy
	}
	defer s.Store.ReleaseStatusLock()

	now := s.now()
	if last, ok := s.Store.LastAction(user); ok && now.Sub(last) < s.throttleGap() {
		return nil, ErrThrottled
	}

	pair := s.Store.EnsureStatusPair(domain.NewStatusPair(now))
	if err := pair.Validate(); err != nil {
		log.Error().Err(err).Msg("status pair failed validation before transition")
		return nil, ErrInvalidStatus
	}
	if pair.OpenEndpoint() != endpoint {
		return nil, ErrEndpointNotOpen
	}

	t := domain.PendingTransition{Endpoint: endpoint, StartedBy: user, StartedAt: now}
	if !s.Store.BeginTransition(t) {
		return nil, ErrTransitionActive
	}
	s.Store.TouchAction(user, now)

	log.Info().Str("user", user).Str("endpoint", string(endpoint)).Msg("transition started")
	return &t, nil
}

// CompleteTransition finishes the active transition and commits the swap.
// endpoint may be empty to mean "whichever transition is active"; a non-empty
// endpoint must match it. When the transition has been running for less than
// the advised window the completion is parked behind a confirmation instead.
func (s *StatusService) CompleteTransition(ctx context.Context, endpoint domain.Endpoint, user string) (*ToggleOutcome, error) {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "CompleteTransition",
		trace.WithAttributes(
			attribute.String("user.id", user),
			attribute.String("endpoint", string(endpoint)),
		),
	)
	defer span.End()

	return s.completeTransition(ctx, endpoint, user, false)
}

func (s *StatusService) completeTransition(ctx context.Context, endpoint domain.Endpoint, user string, bypassGate bool) (*ToggleOutcome, error) {
	if !s.Store.AcquireStatusLock() {
		return nil, ErrLockBusy
	}
	defer s.Store.ReleaseStatusLock()

	now := s.now()
	if last, ok := s.Store.LastAction(user); ok && now.Sub(last) < s.throttleGap() {
		return nil, ErrThrottled
	}

	t, ok := s.Store.Transition()
	if !ok {
		return nil, ErrNoTransition
	}
	if endpoint != "" && endpoint != t.Endpoint {
		return nil, ErrNoTransition
	}

	held := now.Sub(t.StartedAt)
	if !bypassGate && held < s.TransitionWindow(now) {
		s.Store.PutConfirmation(domain.PendingConfirmation{
			UserID:    user,
			Action:    domain.ConfirmCompleteTransition,
			Endpoint:  t.Endpoint,
			CreatedAt: now,
		})
		return nil, ErrConfirmationRequired
	}

	pair := s.Store.EnsureStatusPair(domain.NewStatusPair(now))
	if err := pair.Validate(); err != nil {
		log.Error().Err(err).Msg("status pair failed validation before completion")
		return nil, ErrInvalidStatus
	}

	closing := pair.OpenEndpoint()
	elapsed := now.Sub(pair.Get(closing).ChangedAt)
	next := pair.Flipped(now, user)
	if err := next.Validate(); err != nil {
		log.Error().Err(err).Msg("refusing to commit invalid status pair")
		return nil, ErrInvalidStatus
	}
	s.Store.SetStatusPair(next)
	s.Store.ClearTransition()
	s.Store.TouchAction(user, now)

	out := &ToggleOutcome{
		Pair:    next,
		Opened:  closing.Other(),
		Closed:  closing,
		Elapsed: elapsed,
	}
	if elapsed >= s.minClosure() {
		if err := s.Closures.AppendClosure(ctx, closing, elapsed, now); err != nil {
			log.Error().Err(err).Str("endpoint", string(closing)).Msg("closure append failed")
		} else {
			out.Recorded = true
		}
	}

	log.Info().
		Str("user", user).
		Str("endpoint", string(t.Endpoint)).
		Dur("held", held).
		Msg("transition completed")
	return out, nil
}

// CancelTransition drops the active transition without touching the committed
// pair. Idempotent: cancelling when nothing is active, or for the wrong
// endpoint, reports cancelled=false without error.
func (s *StatusService) CancelTransition(ctx context.Context, endpoint domain.Endpoint, user string) (bool, error) {
	tr := otel.Tracer("services/StatusService")
	_, span := tr.Start(ctx, "CancelTransition",
		trace.WithAttributes(
			attribute.String("user.id", user),
			attribute.String("endpoint", string(endpoint)),
		),
	)
	defer span.End()

	t, ok := s.Store.Transition()
	if !ok {
		return false, nil
	}
	if endpoint != "" && endpoint != t.Endpoint {
		return false, nil
	}
	s.Store.ClearTransition()
	log.Info().Str("user", user).Str("endpoint", string(t.Endpoint)).Msg("transition cancelled")
	return true, nil
}

// ApplyWindowFeedback blends user feedback about actual clearing time into
// the base transition window: the new base is the midpoint of the current
// base and the reported duration, clamped to [15m, 35m]. The blended value
// ages out of the store on its own.
func (s *StatusService) ApplyWindowFeedback(reported time.Duration) time.Duration {
	base := s.BaseWindow
	if base <= 0 {
		base = defaultBaseWindow
	}
	if b, ok := s.Store.WindowBase(); ok && b > 0 {
		base = b
	}

	blended := (base + reported) / 2
	if blended < feedbackFloor {
		blended = feedbackFloor
	}
	if blended > feedbackCeil {
		blended = feedbackCeil
	}
	s.Store.SetWindowBase(blended)
	log.Info().Dur("reported", reported).Dur("base", blended).Msg("transition window adjusted")
	return blended
}

// TransitionWindow computes the advised clearing window at instant now: the
// base window scaled up during peak hours and bad weather, clamped to
// [10m, 30m]. Weather is read from the cache only; this method can run under
// the status lock and must never touch the network.
func (s *StatusService) TransitionWindow(now time.Time) time.Duration {
	base := s.BaseWindow
	if base <= 0 {
		base = defaultBaseWindow
	}
	if b, ok := s.Store.WindowBase(); ok && b > 0 {
		base = b
	}

	w := float64(base)
	if isPeakHour(now.In(s.loc()).Hour()) {
		w *= peakMultiplier
	}
	if snap, ok := s.Store.Weather(); ok {
		switch {
		case hasSevereWeather(snap):
			w *= severeMultiplier
		case hasRain(snap):
			w *= rainMultiplier
		}
	}

	d := time.Duration(w)
	if d < windowFloor {
		d = windowFloor
	}
	if d > windowCeil {
		d = windowCeil
	}
	return d
}

// Peak hours of the segment: morning, lunch, and evening commutes.
func isPeakHour(hour int) bool {
	switch {
	case hour >= 6 && hour < 8:
		return true
	case hour >= 11 && hour < 13:
		return true
	case hour >= 17 && hour < 19:
		return true
	}
	return false
}

func hasRain(snap domain.WeatherSnapshot) bool {
	return weatherMentions(snap, "chuva", "rain")
}

func hasSevereWeather(snap domain.WeatherSnapshot) bool {
	return weatherMentions(snap, "neve", "snow", "tempestade", "storm")
}

func weatherMentions(snap domain.WeatherSnapshot, terms ...string) bool {
	text := strings.ToLower(snap.Condition + " " + snap.Advisory)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
