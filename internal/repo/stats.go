// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// RequestsStats returns the number of requests userID takes part in within
// statuses and the greatest UpdatedAt among them. With no rows it returns
// (0, nil, nil).
func RequestsStats(ctx context.Context, db *gorm.DB, userID uint, statuses []domain.RequestStatus) (count int64, maxUpdatedAt *time.Time, err error) {
	q := userRequests(db.WithContext(ctx), userID, statuses).Model(&domain.Request{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = userRequests(db.WithContext(ctx), userID, statuses).
		Model(&domain.Request{}).
		Select("updated_at").
		Order("updated_at DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
