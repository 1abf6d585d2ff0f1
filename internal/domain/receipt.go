package domain

import "time"

// ActionReceipt records a completed lifecycle action submitted through the
// HTTP API, keyed by (user_id, request_id, action, key). A retried call of the same
// action carrying the same Idempotency-Key is answered from the receipt instead of re-running the
// transition, which would otherwise fail with "already processed".
type ActionReceipt struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_receipt_scope,priority:1"`
	RequestID uint      `gorm:"not null;uniqueIndex:ux_receipt_scope,priority:2"`
	Action    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_receipt_scope,priority:3"`
	Key       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_receipt_scope,priority:4"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ActionReceipt) TableName() string { return "action_receipts" }
