package services

import (
	"context"
	"strings"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/notify"
)

// ReviewPrompter is invoked once a request completes. Collecting and storing
// reviews happens elsewhere.
type ReviewPrompter interface {
	PromptReview(ctx context.Context, req *domain.Request)
}

// RatingPrompt asks both parties for a 1..5 rating with inline buttons.
type RatingPrompt struct {
	Notifier notify.Notifier
	Texts    *notify.Texts
}

// PromptReview implements ReviewPrompter.
func (p *RatingPrompt) PromptReview(ctx context.Context, req *domain.Request) {
	row := make([]notify.Button, 0, 5)
	for score := 1; score <= 5; score++ {
		row = append(row, notify.Button{
			Text: strings.Repeat("⭐", score),
			Data: notify.Data(notify.ActReview, req.ID, score),
		})
	}
	text := p.Texts.T(notify.MsgReviewPrompt, req.ID)
	deliver(ctx, p.Notifier, req.Client.TgID, text, notify.Keyboard{row})
	deliver(ctx, p.Notifier, req.Performer.TgID, text, notify.Keyboard{row})
}
