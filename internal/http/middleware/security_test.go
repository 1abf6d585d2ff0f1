package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Fatalf("%s = %q; want %q", k, got, v)
		}
	}
}

func TestWebhookSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hook := func(secret, header string) int {
		r := gin.New()
		r.POST("/hook", WebhookSecret(secret), func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		if header != "" {
			req.Header.Set(HeaderWebhookSecret, header)
		}
		return serve(r, req).Code
	}
	if got := hook("", ""); got != http.StatusOK {
		t.Fatalf("disabled check = %d", got)
	}
	if got := hook("s", "s"); got != http.StatusOK {
		t.Fatalf("matching secret = %d", got)
	}
	if got := hook("s", "x"); got != http.StatusUnauthorized {
		t.Fatalf("wrong secret = %d", got)
	}
	if got := hook("s", ""); got != http.StatusUnauthorized {
		t.Fatalf("missing secret = %d", got)
	}
}
