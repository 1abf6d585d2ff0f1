package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. Values are the English source strings.
const (
	MsgNewRequest         = "🆕 New request #%d: %s, %d min."
	MsgAcceptedWithPay    = "🆕 Request #%d accepted.\n\n💬 Open the proxy chat to agree on details.\n💳 Payment instructions:\n%s"
	MsgAcceptedNoPay      = "🆕 Request #%d accepted.\n\n💬 Open the proxy chat to agree on details.\n💳 Payment instructions have not been provided yet."
	MsgPerfChatDefaultPay = "💬 Chat for request #%d is open. Default payment instructions were sent to the client. Configure: /payinfo"
	MsgPerfChatNoPay      = "💬 Chat for request #%d is open. No default payment instructions: send them in the chat or set them with /payinfo."
	MsgNegotiation        = "💬 The performer wants to discuss request #%d. Open the chat."
	MsgRejected           = "❎ Request #%d was rejected by the performer."
	MsgInstructions       = "💳 Payment for request #%d\n%s"
	MsgNoInstructions     = "💳 Payment for request #%d\nPayment instructions have not been provided yet."
	MsgProofPrompt        = "Send a screenshot, photo or document proving the payment in one message."
	MsgClientPaid         = "💳 The client marked request #%d as paid."
	MsgProofUploaded      = "The client uploaded a payment proof for request #%d. Confirm receipt."
	MsgProofThanks        = "Thanks! The proof is attached. Wait for the performer to confirm."
	MsgPaymentConfirmed   = "✅ Payment confirmed. Request #%d is completed."
	MsgPerformerReceived  = "The performer confirmed receipt. Have a good time!"
	MsgCompleted          = "✅ Request #%d is completed. Both sides confirmed."
	MsgConfirmRecorded    = "Your confirmation for request #%d is recorded. Waiting for the other side."
	MsgChatClosed         = "Chat for request #%d is closed."
	MsgJoined             = "💬 [Chat #%d] You are connected. Everything you send is delivered to the other side."
	MsgPeerOffline        = "Your counterpart is not online yet."
	MsgBothInChat         = "Both sides are in the chat. You can talk."
	MsgPayReminder        = "💳 Do not forget to pay for request #%d. Press \"Paid\" once the money is sent."
	MsgPayPendingReminder = "⏳ Payment for request #%d awaits the performer's confirmation. You can attach a proof of payment."
	MsgLeft               = "You left the chat for request #%d."
	MsgPayWindowExpired   = "⏳ The payment window for request #%d expired. The request was canceled automatically."
	MsgConfirmReminder    = "⏳ Request #%d awaits confirmation. Confirm completion."
	MsgConfirmExpired     = "⏳ Request #%d was canceled because completion was not confirmed."
	MsgAdminConfirmExpiry = "Request #%d was canceled by the confirmation timeout."
	MsgReviewPrompt       = "⭐ How did request #%d go? Rate it."
	MsgReviewThanks       = "Thanks for the rating!"
	MsgListHeader         = "Your requests (%s), page %d of %d:"
	MsgListItem           = "#%d %s, %d min: %s"
	MsgListEmpty          = "No requests here yet."
	MsgPayInfoSaved       = "Default payment instructions saved."
	MsgPayInfoCleared     = "Default payment instructions cleared."
	MsgPayInfoPrompt      = "Send your default payment instructions in one message. /cancel to abort."
	MsgFlowCanceled       = "Canceled."
	MsgInstructionsSent   = "Payment instructions for request #%d were sent to the client."

	ErrTextNotFound       = "Request not found."
	ErrTextNotParticipant = "You are not a participant of this request."
	ErrTextProcessed      = "Already processed."
	ErrTextChatClosed     = "The chat is closed."
	ErrTextGeneric        = "Something went wrong, try again later."

	BtnAccept      = "✅ Accept"
	BtnReject      = "❎ Reject"
	BtnNegotiate   = "💬 Discuss"
	BtnJoin        = "💬 Open chat"
	BtnLeave       = "🚪 Leave chat"
	BtnPaid        = "✅ Paid"
	BtnAttachProof = "📎 Attach proof"
	BtnShowPayment = "💳 Payment"
	BtnGotMoney    = "Received"
	BtnConfirmDone = "✅ Confirm completion"
	BtnPrev        = "◀"
	BtnNext        = "▶"
)

var russian = map[string]string{
	MsgNewRequest:         "🆕 Новая заявка #%d: %s, %d мин.",
	MsgAcceptedWithPay:    "🆕 Отличные новости: заявка #%d принята.\n\n💬 Откройте прокси-чат, чтобы обсудить детали.\n💳 Реквизиты для оплаты:\n%s",
	MsgAcceptedNoPay:      "🆕 Заявка #%d принята.\n\n💬 Откройте прокси-чат, чтобы обсудить детали.\n💳 Реквизиты ещё не предоставлены исполнительницей.",
	MsgPerfChatDefaultPay: "💬 [Чат заявки #%d] Нажмите, чтобы подключиться. Реквизиты по умолчанию уже отправлены клиенту. Настроить: /payinfo",
	MsgPerfChatNoPay:      "💬 [Чат заявки #%d] Нажмите, чтобы подключиться. Реквизиты по умолчанию не настроены: укажите их через /payinfo.",
	MsgNegotiation:        "💬 Исполнительница хочет обсудить заявку #%d. Откройте чат.",
	MsgRejected:           "Заявка #%d отклонена исполнителем.",
	MsgInstructions:       "💳 [Оплата заявки #%d]\n%s",
	MsgNoInstructions:     "💳 [Оплата заявки #%d]\nРеквизиты ещё не предоставлены исполнительницей.",
	MsgProofPrompt:        "Отправьте скрин/фото/документ подтверждения оплаты одним сообщением.",
	MsgClientPaid:         "💳 Клиент отметил заявку #%d как оплаченную.",
	MsgProofUploaded:      "Клиент загрузил подтверждение оплаты по заявке #%d. Подтвердите получение.",
	MsgProofThanks:        "Спасибо! Подтверждение получено. Ожидайте подтверждения от исполнительницы.",
	MsgPaymentConfirmed:   "✅ Оплата подтверждена. Заявка #%d завершена.",
	MsgPerformerReceived:  "Исполнительница подтвердила получение. Приятного времяпровождения!",
	MsgCompleted:          "✅ Заявка #%d завершена. Обе стороны подтвердили выполнение.",
	MsgConfirmRecorded:    "Ваше подтверждение по заявке #%d учтено. Ждём вторую сторону.",
	MsgChatClosed:         "Чат заявки #%d закрыт.",
	MsgJoined:             "💬 [Чат заявки #%d] Вы подключены. Все ваши сообщения будут доставлены второй стороне.",
	MsgPeerOffline:        "Собеседник пока не в сети",
	MsgBothInChat:         "Обе стороны в чате. Можно переписываться.",
	MsgPayReminder:        "💳 Не забудьте оплатить заявку #%d. Нажмите «Оплатил», когда отправите деньги.",
	MsgPayPendingReminder: "⏳ Оплата заявки #%d ожидает подтверждения исполнительницы. Можно прикрепить подтверждение оплаты.",
	MsgLeft:               "Вы вышли из чата заявки #%d.",
	MsgPayWindowExpired:   "⏳ Время на оплату по заявке #%d истекло. Заявка отменена автоматически.",
	MsgConfirmReminder:    "⏳ Заявка #%d ожидает подтверждения. Подтвердите выполнение.",
	MsgConfirmExpired:     "⏳ Заявка #%d отменена из-за отсутствия подтверждения.",
	MsgAdminConfirmExpiry: "Заявка #%d отменена по таймауту подтверждения",
	MsgReviewPrompt:       "⭐ Как прошла заявка #%d? Поставьте оценку.",
	MsgReviewThanks:       "Спасибо за оценку!",
	MsgListHeader:         "Ваши заявки (%s), страница %d из %d:",
	MsgListItem:           "#%d %s, %d мин: %s",
	MsgListEmpty:          "Здесь пока нет заявок.",
	MsgPayInfoSaved:       "Реквизиты по умолчанию сохранены.",
	MsgPayInfoCleared:     "Реквизиты по умолчанию удалены.",
	MsgPayInfoPrompt:      "Отправьте реквизиты по умолчанию одним сообщением. /cancel для отмены.",
	MsgFlowCanceled:       "Отменено.",
	MsgInstructionsSent:   "Реквизиты по заявке #%d отправлены клиенту.",

	ErrTextNotFound:       "Заявка не найдена",
	ErrTextNotParticipant: "Вы не участник этой заявки",
	ErrTextProcessed:      "Уже обработано",
	ErrTextChatClosed:     "Чат закрыт",
	ErrTextGeneric:        "Что-то пошло не так, попробуйте позже.",

	BtnAccept:      "✅ Принять",
	BtnReject:      "❎ Отклонить",
	BtnNegotiate:   "💬 Обсудить",
	BtnJoin:        "💬 Открыть чат через бота",
	BtnLeave:       "🚪 Выйти из чата",
	BtnPaid:        "✅ Оплатил",
	BtnAttachProof: "📎 Прикрепить подтверждение",
	BtnShowPayment: "💳 Реквизиты",
	BtnGotMoney:    "Получено",
	BtnConfirmDone: "✅ Подтвердить выполнение",
	BtnPrev:        "◀",
	BtnNext:        "▶",
}

var cat = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, tr := range russian {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Russian, key, tr)
	}
	return b
}

// Texts renders catalog messages in one locale.
type Texts struct {
	p *message.Printer
}

// NewTexts returns Texts for locale ("ru" or "en"); unknown locales fall
// back to English.
func NewTexts(locale string) *Texts {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Texts{p: message.NewPrinter(tag, message.Catalog(cat))}
}

// T formats the message stored under key.
func (t *Texts) T(key string, args ...any) string {
	return t.p.Sprintf(key, args...)
}
