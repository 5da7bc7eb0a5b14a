// Package services – StatsService
//
// Aggregates the closure history: outlier-filtered moving averages per
// endpoint and a daily summary with the busiest hour. All math runs on rows
// the repo returns; the queries stay dumb on purpose.
package services

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/paresiga/go-traffic-backend/internal/domain"
)

const defaultStatsWindow = 5

// ClosureReader is the read side of the closure log.
type ClosureReader interface {
	ListRecentClosures(ctx context.Context, endpoint domain.Endpoint, limit int) ([]domain.ClosureRecord, error)
	ListClosuresBetween(ctx context.Context, from, to time.Time) ([]domain.ClosureRecord, error)
}

// StatsService computes closure statistics.
type StatsService struct {
	Repo ClosureReader
	Loc  *time.Location

	// Window overrides the moving-average sample count, zero means 5.
	Window int

	Now func() time.Time
}

func (s *StatsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *StatsService) loc() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.UTC
}

func (s *StatsService) window() int {
	if s.Window > 0 {
		return s.Window
	}
	return defaultStatsWindow
}

// Average is an outlier-filtered moving average over recent closures.
type Average struct {
	Mean     time.Duration
	Samples  int
	Filtered int
}

// MovingAverage returns the filtered mean closure duration of the endpoint's
// most recent closures. ErrNoData when none exist.
func (s *StatsService) MovingAverage(ctx context.Context, endpoint domain.Endpoint) (*Average, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "MovingAverage",
		trace.WithAttributes(attribute.String("endpoint", string(endpoint))),
	)
	defer span.End()

	rows, err := s.Repo.ListRecentClosures(ctx, endpoint, s.window())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	durations := make([]float64, len(rows))
	for i, r := range rows {
		durations[i] = float64(r.DurationSeconds)
	}

	kept := filterOutliers(durations)
	filtered := len(durations) - len(kept)
	if len(kept) == 0 {
		// All points flagged each other; fall back to the raw mean rather
		// than reporting no data.
		kept = durations
		filtered = 0
	}

	return &Average{
		Mean:     time.Duration(mean(kept) * float64(time.Second)),
		Samples:  len(rows),
		Filtered: filtered,
	}, nil
}

// Summary is the aggregate of one local calendar day.
type Summary struct {
	Day         time.Time
	Count       int
	Mean        time.Duration
	BusiestHour int
}

// DailySummary aggregates all closures of today's local calendar day.
// ErrNoData when nothing was recorded yet.
func (s *StatsService) DailySummary(ctx context.Context) (*Summary, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "DailySummary")
	defer span.End()

	now := s.now().In(s.loc())
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc())
	to := from.Add(24 * time.Hour)

	rows, err := s.Repo.ListClosuresBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	var total float64
	byHour := map[int]int{}
	for _, r := range rows {
		total += float64(r.DurationSeconds)
		byHour[r.RecordedAt.In(s.loc()).Hour()]++
	}

	busiest, best := 0, -1
	for h := 0; h < 24; h++ {
		if n := byHour[h]; n > best {
			busiest, best = h, n
		}
	}

	return &Summary{
		Day:         from,
		Count:       len(rows),
		Mean:        time.Duration(total / float64(len(rows)) * float64(time.Second)),
		BusiestHour: busiest,
	}, nil
}

// filterOutliers drops points that sit more than two standard deviations from
// the rest of the sample. Each point is judged against the mean and deviation
// of the other points, so one extreme value cannot inflate the deviation
// enough to hide itself. Samples under three points pass through unfiltered.
func filterOutliers(xs []float64) []float64 {
	if len(xs) < 3 {
		return xs
	}
	kept := make([]float64, 0, len(xs))
	rest := make([]float64, 0, len(xs)-1)
	for i, x := range xs {
		rest = rest[:0]
		for j, y := range xs {
			if j != i {
				rest = append(rest, y)
			}
		}
		m := mean(rest)
		sd := stddev(rest, m)
		if sd == 0 {
			if x == m {
				kept = append(kept, x)
			}
			continue
		}
		if math.Abs(x-m) <= 2*sd {
			kept = append(kept, x)
		}
	}
	return kept
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
