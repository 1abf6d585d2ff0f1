package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newTestDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, tgID int64, role domain.Role) *domain.User {
	t.Helper()
	u, err := TouchUser(context.Background(), db, tgID, fmt.Sprintf("user%d", tgID), time.Now().UTC())
	if err != nil {
		t.Fatalf("TouchUser(%d): %v", tgID, err)
	}
	if role != domain.RoleClient {
		if err := SetUserRole(context.Background(), db, tgID, role); err != nil {
			t.Fatalf("SetUserRole: %v", err)
		}
		u.Role = role
	}
	return u
}

func seedRequest(t *testing.T, db *gorm.DB, client, performer *domain.User, status domain.RequestStatus) *domain.Request {
	t.Helper()
	r := &domain.Request{
		ClientID:    client.ID,
		PerformerID: performer.ID,
		Game:        "chess",
		DurationMin: 60,
		Status:      status,
	}
	if err := CreateRequest(context.Background(), db, r); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return r
}
