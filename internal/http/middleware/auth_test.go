package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

func authRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/me", func(c *gin.Context) {
		tg, ok := Actor(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, strconv.FormatInt(tg, 10))
	})
	return r
}

func signed(t *testing.T, secret string, claims jwt.Claims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuth_HeaderMode(t *testing.T) {
	r := authRouter("")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, " 42 ")
	w := serve(r, req)
	if w.Code != http.StatusOK || w.Body.String() != "42" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}

	for _, v := range []string{"", "abc", "0", "-5"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(HeaderUserID, v)
		if w := serve(r, req); w.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status = %d; want 401", v, w.Code)
		}
	}
}

func TestAuth_BearerMode(t *testing.T) {
	const secret = "k3y"
	r := authRouter(secret)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	good := signed(t, secret, &Claims{TgID: 77, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, jwt.SigningMethodHS256)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	if w := serve(r, req); w.Code != http.StatusOK || w.Body.String() != "77" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}

	bad := map[string]string{
		"no header":    "",
		"wrong scheme": "Token " + good,
		"wrong key":    "Bearer " + signed(t, "other", &Claims{TgID: 77}, jwt.SigningMethodHS256),
		"no tg_id":     "Bearer " + signed(t, secret, &Claims{}, jwt.SigningMethodHS256),
		"expired": "Bearer " + signed(t, secret, &Claims{TgID: 77, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}, jwt.SigningMethodHS256),
	}
	for name, h := range bad {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		req.Header.Set(HeaderUserID, "77")
		if w := serve(r, req); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d; want 401", name, w.Code)
		}
	}
}
