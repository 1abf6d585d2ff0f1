package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// updateSource is the long-polling side of *tgbotapi.BotAPI.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll long-polls for updates and hands them to d one at a time, so a user's
// messages reach the relay in the order they were sent. It returns when ctx
// ends.
func Poll(ctx context.Context, src updateSource, d *Dispatcher, timeoutSec int) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSec
	updates := src.GetUpdatesChan(cfg)
	log.Info().Int("timeout_sec", timeoutSec).Msg("bot: long polling started")

	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			log.Info().Msg("bot: long polling stopped")
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			d.Handle(ctx, u)
		}
	}
}
