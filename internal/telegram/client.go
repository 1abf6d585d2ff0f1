// Package telegram adapts the Telegram Bot API to the relay core: Client
// implements notify.Notifier on top of a bot handle, and Dispatcher maps
// incoming updates (commands, button callbacks, ordinary messages) to core
// operations.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-relay-bot/internal/notify"
)

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client sends through the Bot API. Every outbound call waits on a shared
// token bucket so bursts (sweeps, queue flushes) stay under the platform's
// flood limits.
type Client struct {
	api     botAPI
	limiter *rate.Limiter
}

// NewClient wraps api with an rps/burst send limiter.
func NewClient(api botAPI, rps float64, burst int) *Client {
	return &Client{api: api, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Connect authenticates token against the Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return api, nil
}

// Send implements notify.Notifier.
func (c *Client) Send(ctx context.Context, to int64, text string, kb notify.Keyboard) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(to, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = markup(kb)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// Copy implements notify.Notifier. The copy carries no "forwarded from"
// header, so the recipient never learns the sender's account.
func (c *Client) Copy(ctx context.Context, to, fromChat int64, msgID int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewCopyMessage(to, fromChat, msgID))
	return err
}

// Delete implements notify.Notifier.
func (c *Client) Delete(ctx context.Context, chat int64, msgID int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chat, msgID))
	return err
}

// Answer acknowledges a button press, showing text as a toast when set.
func (c *Client) Answer(ctx context.Context, callbackID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func markup(kb notify.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
