// Package notify defines how the core talks to participants: the outbound
// Notifier contract, inline keyboards (affordances) and their callback data,
// and the localized message catalog.
package notify

import (
	"context"
	"strconv"
	"strings"
)

// Notifier is the outbound side of the chat platform.
type Notifier interface {
	// Send delivers text to the chat of identity to, with an optional
	// keyboard, and returns the platform message id.
	Send(ctx context.Context, to int64, text string, kb Keyboard) (int, error)
	// Copy re-sends message msgID from chat fromChat to identity to, keeping
	// media and attachments, without revealing the original sender.
	Copy(ctx context.Context, to, fromChat int64, msgID int) error
	// Delete removes a previously sent message.
	Delete(ctx context.Context, chat int64, msgID int) error
}

// Button is one inline affordance; Data is opaque callback payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Row is shorthand for a keyboard with a single row.
func Row(btns ...Button) Keyboard { return Keyboard{btns} }

// Callback actions understood by the bot dispatcher.
const (
	ActAccept      = "req_accept"
	ActReject      = "req_reject"
	ActNegotiate   = "req_negotiate"
	ActJoin        = "join_room"
	ActLeave       = "leave_room"
	ActShowPayment = "show_payment"
	ActMarkPaid    = "client_mark_paid"
	ActShowProof   = "show_proof"
	ActGotMoney    = "perf_got_money"
	ActConfirmDone = "confirm_done"
	ActList        = "req_list"
	ActReview      = "review"
)

// Data builds callback payload "action:arg1:arg2...".
func Data(action string, args ...any) string {
	var b strings.Builder
	b.WriteString(action)
	for _, a := range args {
		b.WriteByte(':')
		switch v := a.(type) {
		case uint:
			b.WriteString(strconv.FormatUint(uint64(v), 10))
		case int:
			b.WriteString(strconv.Itoa(v))
		case string:
			b.WriteString(v)
		}
	}
	return b.String()
}

// Nop is a Notifier that discards everything. It is used when the service
// runs without a bot token.
type Nop struct{}

func (Nop) Send(context.Context, int64, string, Keyboard) (int, error) { return 0, nil }

func (Nop) Copy(context.Context, int64, int64, int) error { return nil }

func (Nop) Delete(context.Context, int64, int) error { return nil }
