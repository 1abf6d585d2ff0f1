package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// TouchUser creates the user on first contact and refreshes username and
// last-seen time on every later one. Role and presence are left untouched
// for existing rows.
func TouchUser(ctx context.Context, db *gorm.DB, tgID int64, username string, now time.Time) (*domain.User, error) {
	u := &domain.User{
		TgID:       tgID,
		Username:   username,
		Role:       domain.RoleClient,
		LastSeenAt: &now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tg_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "last_seen_at", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	return GetUserByTg(ctx, db, tgID)
}

// GetUserByTg fetches a user by platform identity, or ErrNotFound.
func GetUserByTg(ctx context.Context, db *gorm.DB, tgID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("tg_id = ?", tgID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserRole changes the role of an existing user.
func SetUserRole(ctx context.Context, db *gorm.DB, tgID int64, role domain.Role) error {
	res := db.WithContext(ctx).Model(&domain.User{}).Where("tg_id = ?", tgID).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetChatPresence marks tgID as active in the room of requestID.
func SetChatPresence(ctx context.Context, db *gorm.DB, tgID int64, requestID uint) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("tg_id = ?", tgID).
		Updates(map[string]any{"active_in_chat": true, "last_chat_request_id": requestID}).Error
}

// ClearChatPresence drops the presence flag of the given users, but only for
// those whose current room is requestID; a user who moved on to another room
// stays active there. The last room reference is kept so a later join can
// resume it.
func ClearChatPresence(ctx context.Context, db *gorm.DB, requestID uint, tgIDs ...int64) error {
	if len(tgIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("tg_id IN ? AND last_chat_request_id = ?", tgIDs, requestID).
		Update("active_in_chat", false).Error
}

// ListAdminTgIDs returns the identities of users stored with the ADMIN role.
func ListAdminTgIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("role = ?", domain.RoleAdmin).
		Order("tg_id").
		Pluck("tg_id", &ids).Error
	return ids, err
}

// GetPerformerProfile returns the profile of userID, or ErrNotFound.
func GetPerformerProfile(ctx context.Context, db *gorm.DB, userID uint) (*domain.PerformerProfile, error) {
	var p domain.PerformerProfile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SetDefaultPayInstructions stores the performer's default payment text,
// creating the profile row if needed. An empty text clears it.
func SetDefaultPayInstructions(ctx context.Context, db *gorm.DB, userID uint, text string) error {
	p := &domain.PerformerProfile{UserID: userID, DefaultPayInstructions: text}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"default_pay_instructions", "updated_at"}),
	}).Omit("User").Create(p).Error
}
