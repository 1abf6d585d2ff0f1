package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// HeaderUserID carries the actor identity when the API runs without JWT
// (trusted network or local development).
const HeaderUserID = "X-User-ID"

const actorKey = "tgID"

// Claims is the expected bearer token payload.
type Claims struct {
	TgID int64 `json:"tg_id"`
	jwt.RegisteredClaims
}

// Auth resolves the acting chat-platform identity.
//
// With a non-empty secret the request needs "Authorization: Bearer <jwt>",
// HS256-signed with secret and carrying a positive tg_id claim. Without a
// secret the identity is read from the X-User-ID header. Either way a
// request with no usable identity gets 401.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		var (
			tg  int64
			err error
		)
		if secret != "" {
			tg, err = fromBearer(c.GetHeader("Authorization"), key)
		} else {
			tg, err = strconv.ParseInt(strings.TrimSpace(c.GetHeader(HeaderUserID)), 10, 64)
			if err == nil && tg <= 0 {
				err = errors.New("non-positive id")
			}
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or invalid credentials",
			})
			return
		}
		c.Set(actorKey, tg)
		withLogField(c, "tg_id", tg)
		c.Next()
	}
}

// Actor returns the identity stored by Auth.
func Actor(c *gin.Context) (int64, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return 0, false
	}
	tg, ok := v.(int64)
	return tg, ok && tg > 0
}

func fromBearer(header string, key []byte) (int64, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return 0, errors.New("missing bearer token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil {
		return 0, err
	}
	if claims.TgID <= 0 {
		return 0, errors.New("token without tg_id")
	}
	return claims.TgID, nil
}
