package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

func TestGetReceipt_EmptyKeyOrRequest_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.ActionReceipt{})
	now := time.Now().UTC()

	if rec, err := GetReceipt(context.Background(), db, "u1", 0, "accept", "k1", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for zero request, got (%v, %v)", rec, err)
	}
	if rec, err := GetReceipt(context.Background(), db, "u1", 5, "accept", "  ", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestCreateAndGetReceipt(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.ActionReceipt{})

	rec, err := CreateReceipt(ctx, db, "u1", 5, "k1", "accept", 200, time.Hour)
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if rec.ID == "" || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected receipt: %+v", rec)
	}

	got, err := GetReceipt(ctx, db, "u1", 5, "accept", "k1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if got.Action != "accept" || got.Status != 200 {
		t.Fatalf("unexpected readback: %+v", got)
	}

	if _, err := CreateReceipt(ctx, db, "u1", 5, "k1", "accept", 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same key for another action is a different receipt.
	if _, err := GetReceipt(ctx, db, "u1", 5, "reject", "k1", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for another action, got %v", err)
	}
	if _, err := CreateReceipt(ctx, db, "u1", 5, "k1", "reject", 200, time.Hour); err != nil {
		t.Fatalf("CreateReceipt other action: %v", err)
	}
	// Same key for another request is a different receipt.
	if _, err := CreateReceipt(ctx, db, "u1", 6, "k1", "accept", 200, time.Hour); err != nil {
		t.Fatalf("CreateReceipt other request: %v", err)
	}
}

func TestGetReceipt_Expired(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.ActionReceipt{})

	if _, err := CreateReceipt(ctx, db, "u1", 5, "k1", "reject", 200, time.Minute); err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	later := time.Now().UTC().Add(2 * time.Minute)
	if _, err := GetReceipt(ctx, db, "u1", 5, "reject", "k1", later); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	n, err := PurgeExpiredReceipts(ctx, db, later)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredReceipts = %d (err=%v), want 1", n, err)
	}
}

func TestGetReceipt_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := GetReceipt(context.Background(), db, "u1", 5, "accept", "k1", time.Now()); err == nil || err == ErrNotFound {
		t.Fatalf("expected a DB error without table, got %v", err)
	}
}
