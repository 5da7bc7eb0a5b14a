// Package services – WeatherService
//
// Owns the weather snapshot attached to status replies: fetches from the
// upstream with retries, derives the advisory line, caches the snapshot, and
// falls back to the last cached value when the upstream is down.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/paresiga/go-traffic-backend/internal/domain"
	"github.com/paresiga/go-traffic-backend/internal/retry"
	"github.com/paresiga/go-traffic-backend/internal/store"
	"github.com/paresiga/go-traffic-backend/internal/weather"
)

// Advisory lines attached to the weather section of replies.
const (
	advisoryRain   = "Chuva na região - Dirija com cuidado!"
	advisorySevere = "Tempo severo na região - Evite o trecho se possível!"
	advisoryHot    = "Temperatura muito alta - Hidrate-se!"
	advisoryCold   = "Temperatura muito baixa - Cuidado com a pista!"
)

// historyGrace widens the fallback window beyond the cache freshness TTL:
// after a restart wipes the in-memory cache, a history row this much past
// freshness can still be served rather than reporting no weather at all.
const historyGrace = 30 * time.Minute

// WeatherFetcher is the upstream dependency of WeatherService.
type WeatherFetcher interface {
	Current(ctx context.Context) (*weather.Observation, error)
}

// WeatherLog is the optional persisted history; nil disables both the trail
// and the restart fallback.
type WeatherLog interface {
	AppendWeather(ctx context.Context, snap domain.WeatherSnapshot) error
	LatestWeather(ctx context.Context) (*domain.WeatherRecord, error)
}

// WeatherService serves cached weather snapshots with advisory text.
type WeatherService struct {
	Client  WeatherFetcher
	Store   *store.Store
	History WeatherLog
	Policy  retry.Policy

	// Temperature thresholds in Celsius; nil means the defaults. Pointers so
	// zero is a configurable threshold, not "unset".
	HotAbove  *float64
	ColdBelow *float64

	Now func() time.Time
}

func (s *WeatherService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *WeatherService) hotAbove() float64 {
	if s.HotAbove != nil {
		return *s.HotAbove
	}
	return 35
}

func (s *WeatherService) coldBelow() float64 {
	if s.ColdBelow != nil {
		return *s.ColdBelow
	}
	return 10
}

// Snapshot returns the cached snapshot when fresh, refreshing otherwise.
func (s *WeatherService) Snapshot(ctx context.Context) (domain.WeatherSnapshot, error) {
	tr := otel.Tracer("services/WeatherService")
	ctx, span := tr.Start(ctx, "Snapshot")
	defer span.End()

	if snap, ok := s.Store.Weather(); ok {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches a fresh observation under the retry policy, caches the
// derived snapshot, and appends it to the history. When every attempt fails
// the last cached snapshot is served; with an empty cache the most recent
// history row still inside the grace window is served instead, so a restart
// does not drop the weather section while the upstream is down. Only when
// both fallbacks come up empty does the caller see ErrWeatherUnavailable.
func (s *WeatherService) Refresh(ctx context.Context) (domain.WeatherSnapshot, error) {
	tr := otel.Tracer("services/WeatherService")
	ctx, span := tr.Start(ctx, "Refresh")
	defer span.End()

	obs, err := retry.Do(ctx, s.Policy, func() (*weather.Observation, error) {
		return s.Client.Current(ctx)
	})
	if err != nil {
		if snap, ok := s.Store.Weather(); ok {
			log.Warn().Err(err).Msg("weather refresh failed, serving cached snapshot")
			return snap, nil
		}
		if snap, ok := s.historyFallback(ctx); ok {
			log.Warn().Err(err).Msg("weather refresh failed, serving last persisted snapshot")
			return snap, nil
		}
		log.Error().Err(err).Msg("weather refresh failed with no usable fallback")
		return domain.WeatherSnapshot{}, ErrWeatherUnavailable
	}

	snap := domain.WeatherSnapshot{
		Condition:   obs.Condition,
		Temperature: obs.Temperature,
		Advisory:    s.advisory(obs),
		FetchedAt:   s.now(),
	}
	s.Store.PutWeather(snap)

	if s.History != nil {
		if err := s.History.AppendWeather(ctx, snap); err != nil {
			log.Error().Err(err).Msg("weather history append failed")
		}
	}
	return snap, nil
}

// historyFallback loads the newest persisted snapshot, accepting it up to
// one grace margin past the cache freshness TTL.
func (s *WeatherService) historyFallback(ctx context.Context) (domain.WeatherSnapshot, bool) {
	if s.History == nil {
		return domain.WeatherSnapshot{}, false
	}
	rec, err := s.History.LatestWeather(ctx)
	if err != nil {
		return domain.WeatherSnapshot{}, false
	}
	if s.now().Sub(rec.RecordedAt) > store.WeatherTTL+historyGrace {
		return domain.WeatherSnapshot{}, false
	}
	return domain.WeatherSnapshot{
		Condition:   rec.Condition,
		Temperature: rec.Temperature,
		Advisory:    rec.Advisory,
		FetchedAt:   rec.RecordedAt,
	}, true
}

func (s *WeatherService) advisory(obs *weather.Observation) string {
	switch {
	case obs.Snow || obs.Storm:
		return advisorySevere
	case obs.Rain:
		return advisoryRain
	case obs.Temperature > s.hotAbove():
		return advisoryHot
	case obs.Temperature < s.coldBelow():
		return advisoryCold
	}
	return ""
}
