// Package services – ConfirmationService
//
// Resolves the two-step commit protocol: a mutation parked by the status
// service waits here for the same user's !sim or !nao. Confirmations are
// per-user and expire after a fixed window.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/paresiga/go-traffic-backend/internal/domain"
	"github.com/paresiga/go-traffic-backend/internal/store"
)

// ConfirmationService resolves pending confirmations against the status
// state machine.
type ConfirmationService struct {
	Store  *store.Store
	Status *StatusService

	// TTL overrides the confirmation window, zero means the store default.
	TTL time.Duration

	Now func() time.Time
}

func (s *ConfirmationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ConfirmationService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return store.ConfirmationTTL
}

// Resolution describes how a confirmation was settled.
type Resolution struct {
	Action    domain.ConfirmAction
	Confirmed bool
	// Outcome is the committed toggle, nil when the answer was negative.
	Outcome *ToggleOutcome
}

// Resolve settles the user's pending confirmation. A negative answer discards
// it; an affirmative one re-runs the parked action with the gate bypassed.
// The confirmation is consumed either way.
func (s *ConfirmationService) Resolve(ctx context.Context, user string, affirmative bool) (*Resolution, error) {
	tr := otel.Tracer("services/ConfirmationService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("user.id", user),
			attribute.Bool("affirmative", affirmative),
		),
	)
	defer span.End()

	c, ok := s.Store.Confirmation(user)
	if !ok {
		return nil, ErrNothingPending
	}
	if c.Expired(s.now(), s.ttl()) {
		s.Store.DeleteConfirmation(user)
		return nil, ErrConfirmationExpired
	}

	// Consume first so a failed re-run cannot be replayed with a stale record.
	s.Store.DeleteConfirmation(user)

	if !affirmative {
		log.Info().Str("user", user).Str("action", string(c.Action)).Msg("confirmation declined")
		return &Resolution{Action: c.Action, Confirmed: false}, nil
	}

	var (
		out *ToggleOutcome
		err error
	)
	switch c.Action {
	case domain.ConfirmToggle:
		out, err = s.Status.toggle(ctx, user, true)
	case domain.ConfirmCompleteTransition:
		out, err = s.Status.completeTransition(ctx, c.Endpoint, user, true)
	default:
		return nil, ErrNothingPending
	}
	if err != nil {
		return nil, err
	}
	return &Resolution{Action: c.Action, Confirmed: true, Outcome: out}, nil
}
