package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/events"
	"github.com/tbourn/go-relay-bot/internal/kv"
	"github.com/tbourn/go-relay-bot/internal/notify"
	"github.com/tbourn/go-relay-bot/internal/repo"
)

// ---- fakes ----

type sent struct {
	To   int64
	ID   int
	Text string
	KB   notify.Keyboard
}

type copied struct {
	To, From int64
	MsgID    int
}

type deleted struct {
	Chat  int64
	MsgID int
}

// fakeNotifier records every outbound call. Recipients in failFor get an
// error, like a user who blocked the bot.
type fakeNotifier struct {
	mu      sync.Mutex
	nextID  int
	sent    []sent
	copies  []copied
	deletes []deleted
	failFor map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{nextID: 100, failFor: map[int64]bool{}}
}

func (f *fakeNotifier) Send(_ context.Context, to int64, text string, kb notify.Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return 0, errors.New("forbidden: bot was blocked by the user")
	}
	f.nextID++
	f.sent = append(f.sent, sent{To: to, ID: f.nextID, Text: text, KB: kb})
	return f.nextID, nil
}

func (f *fakeNotifier) Copy(_ context.Context, to, fromChat int64, msgID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	f.copies = append(f.copies, copied{To: to, From: fromChat, MsgID: msgID})
	return nil
}

func (f *fakeNotifier) Delete(_ context.Context, chat int64, msgID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleted{Chat: chat, MsgID: msgID})
	return nil
}

// textsTo returns the texts sent to tg, oldest first.
func (f *fakeNotifier) textsTo(tg int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.To == tg {
			out = append(out, s.Text)
		}
	}
	return out
}

// countTo counts messages to tg containing sub.
func (f *fakeNotifier) countTo(tg int64, sub string) int {
	n := 0
	for _, txt := range f.textsTo(tg) {
		if strings.Contains(txt, sub) {
			n++
		}
	}
	return n
}

// lastTo returns the newest message sent to tg.
func (f *fakeNotifier) lastTo(tg int64) (sent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].To == tg {
			return f.sent[i], true
		}
	}
	return sent{}, false
}

func (f *fakeNotifier) copiesTo(tg int64) []copied {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []copied
	for _, c := range f.copies {
		if c.To == tg {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent, f.copies, f.deletes = nil, nil, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

type fakeReviews struct {
	mu  sync.Mutex
	ids []uint
}

func (r *fakeReviews) PromptReview(_ context.Context, req *domain.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, req.ID)
}

// ---- fixture ----

const (
	clientTg    int64 = 1001
	performerTg int64 = 2002
	strangerTg  int64 = 3003
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	DB       *gorm.DB
	MR       *miniredis.Miniredis
	RDB      *redis.Client
	N        *fakeNotifier
	Pub      *fakePublisher
	Reviews  *fakeReviews
	Rooms    *RoomService
	Relay    *RelayService
	Requests *RequestService

	Client, Performer *domain.User
	now               time.Time
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		DB:      newTestDB(t),
		MR:      miniredis.RunT(t),
		N:       newFakeNotifier(),
		Pub:     &fakePublisher{},
		Reviews: &fakeReviews{},
		now:     t0,
	}
	f.RDB = redis.NewClient(&redis.Options{Addr: f.MR.Addr()})
	t.Cleanup(func() { _ = f.RDB.Close() })

	texts := notify.NewTexts("en")
	clock := func() time.Time { return f.now }

	f.Rooms = &RoomService{
		DB:        f.DB,
		Rooms:     kv.NewRoomStore(f.RDB),
		Queue:     kv.NewMessageQueue(f.RDB),
		Notifier:  f.N,
		Texts:     texts,
		Retention: time.Hour,
	}
	f.Relay = &RelayService{
		DB:       f.DB,
		Rooms:    f.Rooms.Rooms,
		Queue:    f.Rooms.Queue,
		Notifier: f.N,
		Now:      clock,
	}
	f.Requests = &RequestService{
		DB:                   f.DB,
		Rooms:                f.Rooms,
		Notifier:             f.N,
		Texts:                texts,
		Events:               f.Pub,
		Reviews:              f.Reviews,
		PayDeadlines:         kv.NewSchedule(f.RDB, kv.KeyPayDeadlines),
		ConfirmDeadlines:     kv.NewSchedule(f.RDB, kv.KeyConfirmDeadlines),
		Reminded:             kv.NewMarker(f.RDB, kv.KeyConfirmReminded),
		PaymentWindow:        24 * time.Hour,
		ConfirmReminderDelay: 24 * time.Hour,
		Now:                  clock,
	}

	var err error
	if f.Client, err = repo.TouchUser(ctx, f.DB, clientTg, "client", t0); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if f.Performer, err = repo.TouchUser(ctx, f.DB, performerTg, "performer", t0); err != nil {
		t.Fatalf("seed performer: %v", err)
	}
	if err := repo.SetUserRole(ctx, f.DB, performerTg, domain.RolePerformer); err != nil {
		t.Fatalf("seed performer role: %v", err)
	}
	f.Performer.Role = domain.RolePerformer
	return f
}

// seedRequest stores a request in the given status with an empty PaymentMeta.
func (f *fixture) seedRequest(t *testing.T, id uint, status domain.RequestStatus) *domain.Request {
	t.Helper()
	r := &domain.Request{
		ID:          id,
		ClientID:    f.Client.ID,
		PerformerID: f.Performer.ID,
		Game:        "chess",
		DurationMin: 60,
		Status:      status,
	}
	if err := repo.CreateRequest(context.Background(), f.DB, r); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return r
}

func (f *fixture) request(t *testing.T, id uint) *domain.Request {
	t.Helper()
	r, err := repo.GetRequest(context.Background(), f.DB, id)
	if err != nil {
		t.Fatalf("GetRequest(%d): %v", id, err)
	}
	return r
}

func (f *fixture) user(t *testing.T, tg int64) *domain.User {
	t.Helper()
	u, err := repo.GetUserByTg(context.Background(), f.DB, tg)
	if err != nil {
		t.Fatalf("GetUserByTg(%d): %v", tg, err)
	}
	return u
}

func (f *fixture) room(t *testing.T, id uint) *domain.RoomInfo {
	t.Helper()
	r, err := f.Rooms.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("room %d: %v", id, err)
	}
	return r
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v; want %v", err, target)
	}
}
