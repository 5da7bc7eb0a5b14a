package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paresiga/go-traffic-backend/internal/domain"
)

// ----- Fake closure reader -----

type fakeClosureReader struct {
	recent     []domain.ClosureRecord
	recentErr  error
	between    []domain.ClosureRecord
	betweenErr error

	gotEndpoint domain.Endpoint
	gotLimit    int
	gotFrom     time.Time
	gotTo       time.Time
}

func (f *fakeClosureReader) ListRecentClosures(ctx context.Context, endpoint domain.Endpoint, limit int) ([]domain.ClosureRecord, error) {
	f.gotEndpoint, f.gotLimit = endpoint, limit
	return f.recent, f.recentErr
}

func (f *fakeClosureReader) ListClosuresBetween(ctx context.Context, from, to time.Time) ([]domain.ClosureRecord, error) {
	f.gotFrom, f.gotTo = from, to
	return f.between, f.betweenErr
}

func records(durations ...int) []domain.ClosureRecord {
	out := make([]domain.ClosureRecord, len(durations))
	for i, d := range durations {
		out[i] = domain.ClosureRecord{DurationSeconds: d}
	}
	return out
}

func TestMovingAverageFiltersOutlier(t *testing.T) {
	repo := &fakeClosureReader{recent: records(60, 65, 70, 600, 62)}
	s := &StatsService{Repo: repo}

	avg, err := s.MovingAverage(context.Background(), domain.EndpointCenter)
	if err != nil {
		t.Fatalf("moving average: %v", err)
	}
	if repo.gotEndpoint != domain.EndpointCenter || repo.gotLimit != 5 {
		t.Fatalf("query = %s limit %d", repo.gotEndpoint, repo.gotLimit)
	}
	if avg.Samples != 5 || avg.Filtered != 1 {
		t.Fatalf("samples=%d filtered=%d", avg.Samples, avg.Filtered)
	}
	// Mean of {60, 65, 70, 62} once the 600s spike is discarded.
	want := time.Duration(64.25 * float64(time.Second))
	if avg.Mean != want {
		t.Fatalf("mean = %v, want %v", avg.Mean, want)
	}
}

func TestMovingAverageSmallSampleUnfiltered(t *testing.T) {
	s := &StatsService{Repo: &fakeClosureReader{recent: records(60, 600)}}

	avg, err := s.MovingAverage(context.Background(), domain.EndpointGoio)
	if err != nil {
		t.Fatalf("moving average: %v", err)
	}
	if avg.Filtered != 0 || avg.Samples != 2 {
		t.Fatalf("samples=%d filtered=%d", avg.Samples, avg.Filtered)
	}
	if avg.Mean != 330*time.Second {
		t.Fatalf("mean = %v", avg.Mean)
	}
}

func TestMovingAverageNoData(t *testing.T) {
	s := &StatsService{Repo: &fakeClosureReader{}}

	if _, err := s.MovingAverage(context.Background(), domain.EndpointCenter); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestMovingAverageRepoError(t *testing.T) {
	boom := errors.New("query failed")
	s := &StatsService{Repo: &fakeClosureReader{recentErr: boom}}

	if _, err := s.MovingAverage(context.Background(), domain.EndpointCenter); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want passthrough", err)
	}
}

func TestDailySummary(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeClosureReader{between: []domain.ClosureRecord{
		{DurationSeconds: 120, RecordedAt: day.Add(7 * time.Hour)},
		{DurationSeconds: 180, RecordedAt: day.Add(7*time.Hour + 30*time.Minute)},
		{DurationSeconds: 300, RecordedAt: day.Add(18 * time.Hour)},
	}}
	s := &StatsService{
		Repo: repo,
		Now:  func() time.Time { return day.Add(20 * time.Hour) },
	}

	sum, err := s.DailySummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !repo.gotFrom.Equal(day) || !repo.gotTo.Equal(day.Add(24*time.Hour)) {
		t.Fatalf("queried [%v, %v)", repo.gotFrom, repo.gotTo)
	}
	if sum.Count != 3 {
		t.Fatalf("count = %d", sum.Count)
	}
	if sum.Mean != 200*time.Second {
		t.Fatalf("mean = %v", sum.Mean)
	}
	if sum.BusiestHour != 7 {
		t.Fatalf("busiest hour = %d", sum.BusiestHour)
	}
}

func TestDailySummaryNoData(t *testing.T) {
	s := &StatsService{
		Repo: &fakeClosureReader{},
		Now:  time.Now,
	}
	if _, err := s.DailySummary(context.Background()); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestFilterOutliersIdenticalValues(t *testing.T) {
	kept := filterOutliers([]float64{120, 120, 120, 120})
	if len(kept) != 4 {
		t.Fatalf("kept %d of 4 identical values", len(kept))
	}
}
