package domain

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():             "users",
		(PerformerProfile{}).TableName(): "performer_profiles",
		(Request{}).TableName():          "requests",
		(PaymentMeta{}).TableName():      "payment_meta",
		(ActionReceipt{}).TableName():    "action_receipts",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_IndexesAndProofSerializer(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&User{}, &PerformerProfile{}, &Request{}, &PaymentMeta{}, &ActionReceipt{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Request{}, "idx_requests_client") || !m.HasIndex(&Request{}, "idx_requests_performer") {
		t.Fatalf("expected request participant indexes")
	}
	if !m.HasIndex(&ActionReceipt{}, "ux_receipt_scope") {
		t.Fatalf("expected unique receipt index")
	}

	c := User{TgID: 1, Role: RoleClient}
	p := User{TgID: 2, Role: RolePerformer}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create performer: %v", err)
	}
	r := Request{ClientID: c.ID, PerformerID: p.ID, Game: "chess", DurationMin: 60, Status: StatusNew}
	if err := db.Omit("Client", "Performer", "PaymentMeta").Create(&r).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}
	meta := PaymentMeta{RequestID: r.ID, ProofRefs: []string{"f1", "f2"}}
	if err := db.Create(&meta).Error; err != nil {
		t.Fatalf("create meta: %v", err)
	}

	var got PaymentMeta
	if err := db.First(&got, "request_id = ?", r.ID).Error; err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if len(got.ProofRefs) != 2 || got.ProofRefs[0] != "f1" || got.ProofRefs[1] != "f2" {
		t.Fatalf("proof refs round-trip mismatch: %#v", got.ProofRefs)
	}

	// Duplicate meta for the same request violates the unique index.
	if err := db.Create(&PaymentMeta{RequestID: r.ID}).Error; err == nil {
		t.Fatalf("expected unique violation on payment_meta.request_id")
	}
}

func TestRequestStatus_Predicates(t *testing.T) {
	for _, s := range DoneStatuses() {
		if s.AllowsRoom() {
			t.Fatalf("%s should not allow an active room", s)
		}
	}
	for _, s := range []RequestStatus{StatusAccepted, StatusNegotiation, StatusPaid} {
		if !s.AllowsRoom() {
			t.Fatalf("%s: unexpected predicates", s)
		}
	}
	if StatusNew.AllowsRoom() {
		t.Fatalf("NEW must not allow a room")
	}
	if len(OpenStatuses())+len(DoneStatuses()) != 7 {
		t.Fatalf("open+done should cover all seven statuses")
	}
}

func TestRoomInfo_Helpers(t *testing.T) {
	r := RoomInfo{Client: 10, Performer: 20, Joined: map[int64]struct{}{10: {}}}
	if !r.IsParticipant(10) || !r.IsParticipant(20) || r.IsParticipant(30) {
		t.Fatalf("IsParticipant mismatch")
	}
	if r.Peer(10) != 20 || r.Peer(20) != 10 {
		t.Fatalf("Peer mismatch")
	}
	if !r.HasJoined(10) || r.HasJoined(20) || r.BothJoined() {
		t.Fatalf("joined helpers mismatch")
	}
	r.Joined[20] = struct{}{}
	if !r.BothJoined() {
		t.Fatalf("expected both joined")
	}
}

func TestConversation_Active(t *testing.T) {
	if (Conversation{}).Active() {
		t.Fatalf("zero conversation must be inactive")
	}
	if !(Conversation{Flow: FlowPaymentProof, RequestID: 1}).Active() {
		t.Fatalf("payment proof flow must be active")
	}
}

func TestRequest_FullyConfirmed(t *testing.T) {
	r := &Request{ClientConfirmed: true}
	if r.FullyConfirmed() {
		t.Fatalf("one side only")
	}
	r.PerformerConfirmed = true
	if !r.FullyConfirmed() {
		t.Fatalf("both sides confirmed")
	}
}
