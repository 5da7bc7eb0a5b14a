// Package repo implements the append-only persistence log for closures and
// weather history, backed by GORM. This file records served weather
// snapshots; the cache remains the authoritative source for serving.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paresiga/go-traffic-backend/internal/domain"
)

// AppendWeather inserts one weather history row for a served snapshot.
func AppendWeather(ctx context.Context, db *gorm.DB, snap domain.WeatherSnapshot) (*domain.WeatherRecord, error) {
	rec := &domain.WeatherRecord{
		ID:          uuid.NewString(),
		Condition:   snap.Condition,
		Temperature: snap.Temperature,
		Advisory:    snap.Advisory,
		RecordedAt:  snap.FetchedAt.UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// LatestWeather returns the most recently recorded weather row, or
// ErrNotFound when the table is empty.
func LatestWeather(ctx context.Context, db *gorm.DB) (*domain.WeatherRecord, error) {
	var rec domain.WeatherRecord
	err := db.WithContext(ctx).
		Order("recorded_at desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
