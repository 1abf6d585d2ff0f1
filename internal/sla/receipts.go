package sla

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/repo"
)

// ResultPurged counts deleted idempotency receipts.
const ResultPurged = "purged"

// ReceiptPurger deletes expired idempotency receipts of the HTTP API so the
// table stays bounded.
type ReceiptPurger struct {
	DB  *gorm.DB
	Now func() time.Time
}

// Name implements Sweeper.
func (p *ReceiptPurger) Name() string { return "receipts" }

// Sweep implements Sweeper.
func (p *ReceiptPurger) Sweep(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("sla/ReceiptPurger").Start(ctx, "Sweep")
	defer span.End()
	defer observe(p.Name(), time.Now())

	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}
	n, err := repo.PurgeExpiredReceipts(ctx, p.DB, now)
	if err != nil {
		return nil, err
	}
	rep := Report{}
	if n > 0 {
		rep[ResultPurged] = int(n)
		sweepItems.WithLabelValues(p.Name(), ResultPurged).Add(float64(n))
	}
	return rep, nil
}
