package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/services"
)

// CreateRequestBody is the payload of POST /requests. The caller is the
// client.
type CreateRequestBody struct {
	PerformerTg int64      `json:"performer_tg" binding:"required" example:"2002"`
	Game        string     `json:"game" binding:"required,max=128" example:"Dota 2"`
	DurationMin int        `json:"duration_min" binding:"required,min=1" example:"60"`
	PreferredAt *time.Time `json:"preferred_at,omitempty"`
}

// TextBody carries free text (payment instructions).
type TextBody struct {
	Text string `json:"text" example:"Card 4111 1111 1111 1111"`
}

// ProofBody carries proof-of-payment references.
type ProofBody struct {
	Refs []string `json:"refs" binding:"required,min=1" example:"photo:AgACAgIAAxkBAAI"`
}

// ListRequestsResponse is one page of requests.
type ListRequestsResponse struct {
	Requests   []domain.Request `json:"requests"`
	Pagination Pagination       `json:"pagination"`
}

// PaymentResponse exposes the instructions attached to a request.
type PaymentResponse struct {
	ID           uint   `json:"id"`
	Instructions string `json:"instructions"`
}

// ActionResponse acknowledges a lifecycle action.
type ActionResponse struct {
	ID     uint                 `json:"id"`
	Status domain.RequestStatus `json:"status,omitempty"`
}

// ConfirmResponse reports whether a confirmation completed the request.
type ConfirmResponse struct {
	ID        uint `json:"id"`
	Completed bool `json:"completed"`
}

// CreateRequest godoc
// @Summary      Create a request
// @Description  The caller becomes the client; the performer is notified with accept/reject buttons.
// @Tags         requests
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    int                true  "Caller tg id (when JWT is disabled)"
// @Param        body       body      CreateRequestBody  true  "Request"
// @Success      201        {object}  domain.Request
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /requests [post]
func (h *Handlers) CreateRequest(c *gin.Context) {
	tg, ok := actor(c)
	if !ok {
		return
	}
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid body")
		return
	}
	req, err := h.reqs.Create(c.Request.Context(), tg, body.PerformerTg, strings.TrimSpace(body.Game), body.DurationMin, body.PreferredAt)
	if err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusCreated, req)
}

// ListRequests godoc
// @Summary      List the caller's requests
// @Tags         requests
// @Produce      json
// @Param        tab        query     string  false  "open|done|all"  default(all)
// @Param        page       query     int     false  "Page (1-based)"
// @Param        page_size  query     int     false  "Page size (max 50)"
// @Param        If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success      200        {object}  ListRequestsResponse
// @Header       200        {string}  ETag  "Weak ETag for the listing"
// @Success      304        {string}  string  "Not Modified"
// @Failure      400        {object}  ErrorResponse
// @Router       /requests [get]
func (h *Handlers) ListRequests(c *gin.Context) {
	tg, ok := actor(c)
	if !ok {
		return
	}
	page, size := clampPagination(c)
	tab := c.DefaultQuery("tab", services.TabAll)

	// Best effort: a failed version lookup only skips the ETag.
	if etag, err := h.reqs.ListVersion(c.Request.Context(), tg, tab); err == nil {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.reqs.ListForUser(c.Request.Context(), tg, tab, page, size)
	if err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, ListRequestsResponse{Requests: items, Pagination: newPagination(page, size, total)})
}

// GetRequest godoc
// @Summary      Get a request
// @Tags         requests
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  domain.Request
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id} [get]
func (h *Handlers) GetRequest(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	req, err := h.reqs.Get(c.Request.Context(), id, tg)
	if err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, req)
}

// Negotiate godoc
// @Summary      Open negotiation (performer)
// @Tags         lifecycle
// @Produce      json
// @Param        id               path      int     true   "Request ID"
// @Param        Idempotency-Key  header    string  false  "Retry key"
// @Success      200  {object}  ActionResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/negotiate [post]
func (h *Handlers) Negotiate(c *gin.Context) {
	h.action(c, domain.StatusNegotiation, h.reqs.Negotiate)
}

// Accept godoc
// @Summary      Accept a request (performer)
// @Tags         lifecycle
// @Produce      json
// @Param        id               path      int     true   "Request ID"
// @Param        Idempotency-Key  header    string  false  "Retry key"
// @Success      200  {object}  ActionResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/accept [post]
func (h *Handlers) Accept(c *gin.Context) {
	h.action(c, domain.StatusAccepted, h.reqs.Accept)
}

// Reject godoc
// @Summary      Reject a request (performer)
// @Tags         lifecycle
// @Produce      json
// @Param        id               path      int     true   "Request ID"
// @Param        Idempotency-Key  header    string  false  "Retry key"
// @Success      200  {object}  ActionResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/reject [post]
func (h *Handlers) Reject(c *gin.Context) {
	h.action(c, domain.StatusRejected, h.reqs.Reject)
}

// MarkPaid godoc
// @Summary      Mark the request as paid (client)
// @Tags         payment
// @Produce      json
// @Param        id               path      int     true   "Request ID"
// @Param        Idempotency-Key  header    string  false  "Retry key"
// @Success      200  {object}  ActionResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/paid [post]
func (h *Handlers) MarkPaid(c *gin.Context) {
	h.action(c, domain.StatusPaid, h.reqs.MarkPaid)
}

// ConfirmReceived godoc
// @Summary      Confirm the money arrived (performer); completes the request
// @Tags         payment
// @Produce      json
// @Param        id               path      int     true   "Request ID"
// @Param        Idempotency-Key  header    string  false  "Retry key"
// @Success      200  {object}  ActionResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/received [post]
func (h *Handlers) ConfirmReceived(c *gin.Context) {
	h.action(c, domain.StatusCompleted, h.reqs.ConfirmReceived)
}

// Confirm godoc
// @Summary      Record the caller's completion confirmation
// @Description  The request completes once both sides confirmed.
// @Tags         payment
// @Produce      json
// @Param        id               path      int     true   "Request ID"
// @Param        Idempotency-Key  header    string  false  "Retry key"
// @Success      200  {object}  ConfirmResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/confirm [post]
func (h *Handlers) Confirm(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	done, err := h.reqs.ConfirmCompletion(c.Request.Context(), id, tg)
	if err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, ConfirmResponse{ID: id, Completed: done})
}

// SetInstructions godoc
// @Summary      Set payment instructions on a request (performer)
// @Tags         payment
// @Accept       json
// @Produce      json
// @Param        id    path      int       true  "Request ID"
// @Param        body  body      TextBody  true  "Instructions"
// @Success      200   {object}  ActionResponse
// @Failure      400   {object}  ErrorResponse
// @Router       /requests/{id}/instructions [post]
func (h *Handlers) SetInstructions(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	var body TextBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid body")
		return
	}
	if err := h.reqs.SetInstructions(c.Request.Context(), id, tg, body.Text); err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, ActionResponse{ID: id})
}

// Payment godoc
// @Summary      Show payment instructions
// @Tags         payment
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  PaymentResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /requests/{id}/payment [get]
func (h *Handlers) Payment(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	text, err := h.reqs.PaymentInstructions(c.Request.Context(), id, tg)
	if err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, PaymentResponse{ID: id, Instructions: text})
}

// AttachProof godoc
// @Summary      Attach proof-of-payment references (client)
// @Tags         payment
// @Accept       json
// @Param        id    path  int        true  "Request ID"
// @Param        body  body  ProofBody  true  "References"
// @Success      204
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/proof [post]
func (h *Handlers) AttachProof(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	var body ProofBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid body")
		return
	}
	if err := h.reqs.AttachProof(c.Request.Context(), id, tg, body.Refs); err != nil {
		failFrom(c, err)
		return
	}
	noContent(c)
}

// SetPayInfo godoc
// @Summary      Set the caller's default payment instructions (performer)
// @Description  Empty text clears them.
// @Tags         performers
// @Accept       json
// @Param        body  body  TextBody  true  "Instructions"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Router       /performers/me/payinfo [put]
func (h *Handlers) SetPayInfo(c *gin.Context) {
	tg, ok := actor(c)
	if !ok {
		return
	}
	var body TextBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid body")
		return
	}
	if err := h.reqs.SetDefaultPayInstructions(c.Request.Context(), tg, body.Text); err != nil {
		failFrom(c, err)
		return
	}
	noContent(c)
}

// action runs a parameterless transition and reports the status it moved to.
func (h *Handlers) action(c *gin.Context, to domain.RequestStatus, fn func(ctx context.Context, id uint, actor int64) error) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), id, tg); err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, ActionResponse{ID: id, Status: to})
}

func target(c *gin.Context) (uint, int64, bool) {
	tg, ok := actor(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := pathID(c)
	return id, tg, ok
}
