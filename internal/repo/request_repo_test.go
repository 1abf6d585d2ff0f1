package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

func TestCreateRequest_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	r := &domain.Request{ClientID: 1, PerformerID: 2, Game: "go", DurationMin: 30}
	if err := CreateRequest(context.Background(), db, r); err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestCreateRequest_DefaultsAndPaymentMeta(t *testing.T) {
	db := newMigratedDB(t)
	c := seedUser(t, db, 100, domain.RoleClient)
	p := seedUser(t, db, 200, domain.RolePerformer)

	r := &domain.Request{ClientID: c.ID, PerformerID: p.ID, Game: "dota", DurationMin: 90}
	if err := CreateRequest(context.Background(), db, r); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if r.ID == 0 || r.Status != domain.StatusNew || r.PaymentMeta == nil || r.PaymentMeta.RequestID != r.ID {
		t.Fatalf("unexpected request after create: %+v", r)
	}

	got, err := GetRequest(context.Background(), db, r.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Client.TgID != 100 || got.Performer.TgID != 200 {
		t.Fatalf("participants not preloaded: %+v", got)
	}
	if got.PaymentMeta == nil || got.PaymentMeta.ClientMarkPaid {
		t.Fatalf("expected empty payment meta, got %+v", got.PaymentMeta)
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	db := newMigratedDB(t)
	if _, err := GetRequest(context.Background(), db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	c := seedUser(t, db, 1, domain.RoleClient)
	p := seedUser(t, db, 2, domain.RolePerformer)
	r := seedRequest(t, db, c, p, domain.StatusNew)

	from := []domain.RequestStatus{domain.StatusNew, domain.StatusNegotiation}
	if err := TransitionStatus(ctx, db, r.ID, from, domain.StatusAccepted); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	// Same transition again must not win twice.
	if err := TransitionStatus(ctx, db, r.ID, from, domain.StatusAccepted); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus on repeat, got %v", err)
	}
	if err := TransitionStatus(ctx, db, 12345, from, domain.StatusAccepted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}

	got, _ := GetRequest(ctx, db, r.ID)
	if got.Status != domain.StatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", got.Status)
	}
}

func TestSetConfirmed_OnlyWhilePaidAndOncePerSide(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	c := seedUser(t, db, 1, domain.RoleClient)
	p := seedUser(t, db, 2, domain.RolePerformer)
	r := seedRequest(t, db, c, p, domain.StatusAccepted)

	if err := SetConfirmed(ctx, db, r.ID, domain.RoleClient); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("confirm before PAID: want ErrStaleStatus, got %v", err)
	}
	if err := TransitionStatus(ctx, db, r.ID, []domain.RequestStatus{domain.StatusAccepted}, domain.StatusPaid); err != nil {
		t.Fatalf("to PAID: %v", err)
	}
	if err := SetConfirmed(ctx, db, r.ID, domain.RoleClient); err != nil {
		t.Fatalf("client confirm: %v", err)
	}
	if err := SetConfirmed(ctx, db, r.ID, domain.RoleClient); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("second client confirm: want ErrStaleStatus, got %v", err)
	}
	if err := SetConfirmed(ctx, db, r.ID, domain.RolePerformer); err != nil {
		t.Fatalf("performer confirm: %v", err)
	}
	got, _ := GetRequest(ctx, db, r.ID)
	if !got.FullyConfirmed() {
		t.Fatalf("expected both flags set, got %+v", got)
	}
}

func TestListAndCountRequests_FilterByUserAndStatus(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	c := seedUser(t, db, 1, domain.RoleClient)
	p := seedUser(t, db, 2, domain.RolePerformer)
	other := seedUser(t, db, 3, domain.RoleClient)

	seedRequest(t, db, c, p, domain.StatusNew)
	seedRequest(t, db, c, p, domain.StatusCompleted)
	r3 := seedRequest(t, db, c, p, domain.StatusPaid)
	seedRequest(t, db, other, p, domain.StatusNew)

	n, err := CountRequests(ctx, db, c.ID, domain.OpenStatuses())
	if err != nil || n != 2 {
		t.Fatalf("CountRequests open = %d (err=%v), want 2", n, err)
	}
	n, _ = CountRequests(ctx, db, p.ID, nil)
	if n != 4 {
		t.Fatalf("performer sees %d requests, want 4", n)
	}

	page, err := ListRequestsPage(ctx, db, c.ID, domain.OpenStatuses(), 0, 1)
	if err != nil {
		t.Fatalf("ListRequestsPage: %v", err)
	}
	if len(page) != 1 || page[0].ID != r3.ID {
		t.Fatalf("expected newest open request %d first, got %+v", r3.ID, page)
	}
	if page[0].Performer.TgID != 2 {
		t.Fatalf("performer not preloaded: %+v", page[0])
	}

	done, _ := ListRequestsPage(ctx, db, c.ID, domain.DoneStatuses(), 0, 10)
	if len(done) != 1 || done[0].Status != domain.StatusCompleted {
		t.Fatalf("unexpected done list: %+v", done)
	}
}
