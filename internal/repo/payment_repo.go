package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// GetPaymentMeta returns the payment metadata of a request, or ErrNotFound.
func GetPaymentMeta(ctx context.Context, db *gorm.DB, requestID uint) (*domain.PaymentMeta, error) {
	var m domain.PaymentMeta
	if err := db.WithContext(ctx).Where("request_id = ?", requestID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// SetInstructions overwrites the payment instructions of a request.
func SetInstructions(ctx context.Context, db *gorm.DB, requestID uint, text string) error {
	return updateMeta(ctx, db, requestID, map[string]any{"instructions": text})
}

// FillInstructions sets instructions only when none are stored yet. It reports
// whether the row was changed.
func FillInstructions(ctx context.Context, db *gorm.DB, requestID uint, text string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.PaymentMeta{}).
		Where("request_id = ? AND (instructions = '' OR instructions IS NULL)", requestID).
		Update("instructions", text)
	return res.RowsAffected > 0, res.Error
}

// MarkClientPaid records the client's payment claim.
func MarkClientPaid(ctx context.Context, db *gorm.DB, requestID uint) error {
	return updateMeta(ctx, db, requestID, map[string]any{
		"client_mark_paid": true,
		"payment_pending":  true,
	})
}

// MarkPerformerReceived records the performer's acknowledgment. The client
// flag is set along with it so received always implies paid.
func MarkPerformerReceived(ctx context.Context, db *gorm.DB, requestID uint) error {
	return updateMeta(ctx, db, requestID, map[string]any{
		"client_mark_paid":   true,
		"performer_received": true,
		"payment_pending":    false,
	})
}

// AppendProofs adds proof-of-payment references, keeping the existing ones and
// their order. It returns the full list after the append.
func AppendProofs(ctx context.Context, db *gorm.DB, requestID uint, refs []string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m domain.PaymentMeta
		if err := tx.Where("request_id = ?", requestID).First(&m).Error; err != nil {
			return err
		}
		m.ProofRefs = append(m.ProofRefs, refs...)
		if err := tx.Model(&m).Select("proof_refs").Updates(&m).Error; err != nil {
			return err
		}
		out = m.ProofRefs
		return nil
	})
	return out, err
}

func updateMeta(ctx context.Context, db *gorm.DB, requestID uint, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.PaymentMeta{}).
		Where("request_id = ?", requestID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
