package middleware

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/repo"
)

// HeaderIdempotencyKey is the client-supplied retry key for lifecycle actions.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"

	maxIdemKeyLen = 200
)

var idemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IsReplay reports whether the current request was answered from a stored
// receipt.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Idempotency makes POST actions on /requests/:id/... safe to retry.
//
// A request without the header passes through. A malformed key gets 400. If
// a live receipt exists for (actor, request id, route, key), the stored status is
// returned without running the handler. Otherwise the handler runs and a 2xx
// outcome is recorded for ttl. Must run after Auth.
func Idempotency(db *gorm.DB, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if len(key) > maxIdemKeyLen || !idemKeyPattern.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		tg, _ := Actor(c)
		user := strconv.FormatInt(tg, 10)
		id64, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		reqID := uint(id64)
		ctx := c.Request.Context()

		rec, err := repo.GetReceipt(ctx, db, user, reqID, c.FullPath(), key, time.Now().UTC())
		switch {
		case err == nil:
			c.Set(ctxKeyIdemReplay, true)
			c.AbortWithStatusJSON(rec.Status, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"id":         reqID,
				"action":     rec.Action,
				"replayed":   true,
			})
			return
		case !errors.Is(err, repo.ErrNotFound):
			LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}

		c.Next()

		status := c.Writer.Status()
		if reqID == 0 || status < 200 || status >= 300 {
			return
		}
		if _, err := repo.CreateReceipt(ctx, db, user, reqID, key, c.FullPath(), status, ttl); err != nil &&
			!errors.Is(err, repo.ErrDuplicate) {
			LoggerFrom(c).Warn().Err(err).Msg("idempotency receipt not stored")
		}
	}
}
