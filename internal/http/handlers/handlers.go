package handlers

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// RequestService is the lifecycle surface used by the request endpoints.
type RequestService interface {
	Create(ctx context.Context, clientTg, performerTg int64, game string, durationMin int, preferredAt *time.Time) (*domain.Request, error)
	Get(ctx context.Context, id uint, actor int64) (*domain.Request, error)
	ListForUser(ctx context.Context, tg int64, tab string, page, pageSize int) ([]domain.Request, int64, error)
	ListVersion(ctx context.Context, tg int64, tab string) (string, error)
	Negotiate(ctx context.Context, id uint, actor int64) error
	Accept(ctx context.Context, id uint, actor int64) error
	Reject(ctx context.Context, id uint, actor int64) error
	SetInstructions(ctx context.Context, id uint, actor int64, text string) error
	PaymentInstructions(ctx context.Context, id uint, actor int64) (string, error)
	MarkPaid(ctx context.Context, id uint, actor int64) error
	AttachProof(ctx context.Context, id uint, actor int64, refs []string) error
	ConfirmReceived(ctx context.Context, id uint, actor int64) error
	ConfirmCompletion(ctx context.Context, id uint, actor int64) (bool, error)
	SetDefaultPayInstructions(ctx context.Context, performerTg int64, text string) error
}

// RoomService is the proxy-chat surface used by the room endpoints.
type RoomService interface {
	Get(ctx context.Context, requestID uint) (*domain.RoomInfo, error)
	Join(ctx context.Context, requestID uint, tg int64) (map[int64]struct{}, error)
	Leave(ctx context.Context, requestID uint, tg int64) error
}

// UpdateHandler consumes one chat-platform update.
type UpdateHandler interface {
	Handle(ctx context.Context, u tgbotapi.Update)
}

// Handlers groups the API endpoints.
type Handlers struct {
	reqs  RequestService
	rooms RoomService
}

// New binds the handlers to their services.
func New(reqs RequestService, rooms RoomService) *Handlers {
	return &Handlers{reqs: reqs, rooms: rooms}
}
