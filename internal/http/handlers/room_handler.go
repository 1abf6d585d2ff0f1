package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

// RoomResponse describes the proxy-chat room of a request.
type RoomResponse struct {
	RequestID uint    `json:"request_id"`
	Active    bool    `json:"active"`
	Joined    []int64 `json:"joined"`
}

// GetRoom godoc
// @Summary      Show the chat room of a request
// @Tags         rooms
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  RoomResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/room [get]
func (h *Handlers) GetRoom(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.reqs.Get(ctx, id, tg); err != nil {
		failFrom(c, err)
		return
	}
	room, err := h.rooms.Get(ctx, id)
	if err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, RoomResponse{RequestID: id, Active: room.Active, Joined: sortedIDs(room.Joined)})
}

// JoinRoom godoc
// @Summary      Join the chat room; queued messages are flushed to the caller
// @Tags         rooms
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  RoomResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /requests/{id}/room/join [post]
func (h *Handlers) JoinRoom(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	joined, err := h.rooms.Join(c.Request.Context(), id, tg)
	if err != nil {
		failFrom(c, err)
		return
	}
	okJSON(c, http.StatusOK, RoomResponse{RequestID: id, Active: true, Joined: sortedIDs(joined)})
}

// LeaveRoom godoc
// @Summary      Leave the chat room
// @Tags         rooms
// @Param        id   path  int  true  "Request ID"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Router       /requests/{id}/room/leave [post]
func (h *Handlers) LeaveRoom(c *gin.Context) {
	id, tg, ok := target(c)
	if !ok {
		return
	}
	if err := h.rooms.Leave(c.Request.Context(), id, tg); err != nil {
		failFrom(c, err)
		return
	}
	noContent(c)
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
