package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Webhook feeds Bot API webhook calls into an UpdateHandler one at a time,
// so relayed messages keep their arrival order as in long polling.
type Webhook struct {
	mu sync.Mutex
	h  UpdateHandler
}

// NewWebhook wraps h.
func NewWebhook(h UpdateHandler) *Webhook { return &Webhook{h: h} }

// Receive godoc
// @Summary      Bot API webhook
// @Tags         bot
// @Accept       json
// @Success      200
// @Failure      400  {object}  ErrorResponse
// @Router       /telegram/webhook [post]
func (w *Webhook) Receive(c *gin.Context) {
	var u tgbotapi.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update")
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.h.Handle(c.Request.Context(), u)
	c.Status(http.StatusOK)
}
