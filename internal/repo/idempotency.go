// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for ActionReceipt,
// the record behind safe retries of lifecycle actions on the HTTP API.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// ErrDuplicate indicates that a receipt already exists for the given
// (user_id, request_id, action, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetReceipt returns a non-expired receipt of action or ErrNotFound. A key
// reused for another action on the same request does not match.
func GetReceipt(ctx context.Context, db *gorm.DB, userID string, requestID uint, action, key string, now time.Time) (*domain.ActionReceipt, error) {
	if requestID == 0 || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.ActionReceipt
	err := db.WithContext(ctx).
		Where("user_id = ? AND request_id = ? AND action = ? AND key = ? AND expires_at > ?", userID, requestID, action, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateReceipt inserts a receipt and returns ErrDuplicate on unique violation.
func CreateReceipt(ctx context.Context, db *gorm.DB, userID string, requestID uint, key, action string, status int, ttl time.Duration) (*domain.ActionReceipt, error) {
	now := time.Now().UTC()
	rec := &domain.ActionReceipt{
		ID:        uuid.NewString(),
		UserID:    userID,
		RequestID: requestID,
		Key:       key,
		Action:    action,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredReceipts deletes receipts whose expiry is at or before now.
func PurgeExpiredReceipts(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ActionReceipt{})
	return res.RowsAffected, res.Error
}

// glebarez/sqlite often returns plain-text errors for UNIQUE violations and
// pgx reports SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "sqlstate 23505")
}
