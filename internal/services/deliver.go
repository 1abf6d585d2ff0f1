package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-relay-bot/internal/notify"
)

// deliver sends a notice and swallows failures: participants who blocked the
// bot or deleted their chat must not break the operation that notifies them.
// It returns the message id, or 0 when sending failed.
func deliver(ctx context.Context, n notify.Notifier, to int64, text string, kb notify.Keyboard) int {
	if n == nil || to == 0 {
		return 0
	}
	id, err := n.Send(ctx, to, text, kb)
	if err != nil {
		log.Debug().Err(err).Int64("tg_id", to).Msg("notify: send failed")
		return 0
	}
	return id
}

// retract deletes a previously sent notice, best-effort.
func retract(ctx context.Context, n notify.Notifier, chat int64, msgID int) {
	if n == nil || msgID == 0 {
		return
	}
	if err := n.Delete(ctx, chat, msgID); err != nil {
		log.Debug().Err(err).Int64("tg_id", chat).Int("msg_id", msgID).Msg("notify: delete failed")
	}
}
