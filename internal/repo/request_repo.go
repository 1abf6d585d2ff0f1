// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Request
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - When a guarded status change matches the row but not the allowed source
//     states, functions return ErrStaleStatus. The caller decides whether that
//     means "already processed" or a lost race with a sweeper.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleStatus is returned when a conditional status update found the row in
// a state outside the allowed source set.
var ErrStaleStatus = errors.New("stale status")

// CreateRequest inserts r together with an empty PaymentMeta row in a single
// transaction. Associations on r are not written.
func CreateRequest(ctx context.Context, db *gorm.DB, r *domain.Request) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.Status == "" {
			r.Status = domain.StatusNew
		}
		if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
			return err
		}
		meta := &domain.PaymentMeta{RequestID: r.ID}
		if err := tx.Create(meta).Error; err != nil {
			return err
		}
		r.PaymentMeta = meta
		return nil
	})
}

// GetRequest loads a request with its participants and payment metadata.
func GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.Request, error) {
	var r domain.Request
	err := db.WithContext(ctx).
		Preload("Client").
		Preload("Performer").
		Preload("PaymentMeta").
		First(&r, id).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// TransitionStatus moves request id to status to, but only while its current
// status is one of from. It returns ErrNotFound when the row is missing and
// ErrStaleStatus when it exists in another state.
func TransitionStatus(ctx context.Context, db *gorm.DB, id uint, from []domain.RequestStatus, to domain.RequestStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Request{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrStale(ctx, db, id)
	}
	return nil
}

// SetConfirmed records a completion self-report for one side of a PAID
// request. A side that already confirmed yields ErrStaleStatus.
func SetConfirmed(ctx context.Context, db *gorm.DB, id uint, side domain.Role) error {
	col := "client_confirmed"
	if side == domain.RolePerformer {
		col = "performer_confirmed"
	}
	res := db.WithContext(ctx).
		Model(&domain.Request{}).
		Where("id = ? AND status = ? AND "+col+" = ?", id, domain.StatusPaid, false).
		Update(col, true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrStale(ctx, db, id)
	}
	return nil
}

// CountRequests returns how many requests userID takes part in (either side)
// whose status is in statuses. An empty statuses slice matches all.
func CountRequests(ctx context.Context, db *gorm.DB, userID uint, statuses []domain.RequestStatus) (int64, error) {
	var total int64
	err := userRequests(db.WithContext(ctx), userID, statuses).
		Model(&domain.Request{}).
		Count(&total).Error
	return total, err
}

// ListRequestsPage returns a page of requests userID takes part in, newest
// first, with participants preloaded.
func ListRequestsPage(ctx context.Context, db *gorm.DB, userID uint, statuses []domain.RequestStatus, offset, limit int) ([]domain.Request, error) {
	var out []domain.Request
	err := userRequests(db.WithContext(ctx), userID, statuses).
		Preload("Client").
		Preload("Performer").
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func userRequests(db *gorm.DB, userID uint, statuses []domain.RequestStatus) *gorm.DB {
	q := db.Where("(client_id = ? OR performer_id = ?)", userID, userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	return q
}

func missingOrStale(ctx context.Context, db *gorm.DB, id uint) error {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Request{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStaleStatus
}
