// Package repo implements the append-only persistence log for closures and
// weather history, backed by GORM. This file provides the closure table
// contract: one immutable row per completed closure, plus the read queries
// that feed the statistics aggregator.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition. Outlier filtering and bucketing happen in the service
// layer, which keeps these queries portable across SQLite dialect quirks.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paresiga/go-traffic-backend/internal/domain"
)

// AppendClosure inserts one closure row. Duration is truncated to whole
// seconds; callers are responsible for dropping sub-minute noise before
// calling.
func AppendClosure(ctx context.Context, db *gorm.DB, endpoint domain.Endpoint, duration time.Duration, recordedAt time.Time) (*domain.ClosureRecord, error) {
	rec := &domain.ClosureRecord{
		ID:              uuid.NewString(),
		Endpoint:        string(endpoint),
		DurationSeconds: int(duration.Seconds()),
		RecordedAt:      recordedAt.UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecentClosures returns up to limit closures for the endpoint, most
// recent first. An empty slice means no data, which callers must distinguish
// from a zero average.
func ListRecentClosures(ctx context.Context, db *gorm.DB, endpoint domain.Endpoint, limit int) ([]domain.ClosureRecord, error) {
	var out []domain.ClosureRecord
	err := db.WithContext(ctx).
		Where("endpoint = ?", string(endpoint)).
		Order("recorded_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListClosuresBetween returns all closures (both endpoints) recorded in
// [from, to), oldest first. Used by the daily summary.
func ListClosuresBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.ClosureRecord, error) {
	var out []domain.ClosureRecord
	err := db.WithContext(ctx).
		Where("recorded_at >= ? AND recorded_at < ?", from.UTC(), to.UTC()).
		Order("recorded_at asc").
		Find(&out).Error
	return out, err
}
