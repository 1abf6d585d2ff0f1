package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/requests/:id", Auth(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	user := httpReqs.WithLabelValues(http.MethodGet, "/requests/:id", "200", "user")
	rejected := httpReqs.WithLabelValues(http.MethodGet, "/requests/:id", "401", "anon")
	health := httpReqs.WithLabelValues(http.MethodGet, "/health", "200", "anon")
	miss := httpReqs.WithLabelValues(http.MethodGet, "/nope", "404", "anon")
	b1, b2, b3, b4 := testutil.ToFloat64(user), testutil.ToFloat64(rejected), testutil.ToFloat64(health), testutil.ToFloat64(miss)

	for _, id := range []string{"1", "2"} {
		req := httptest.NewRequest(http.MethodGet, "/requests/"+id, nil)
		req.Header.Set(HeaderUserID, "7")
		serve(r, req)
	}
	serve(r, httptest.NewRequest(http.MethodGet, "/requests/3", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	deltas := []struct {
		name      string
		got, want float64
	}{
		{"user", testutil.ToFloat64(user) - b1, 2},
		{"rejected", testutil.ToFloat64(rejected) - b2, 1},
		{"health", testutil.ToFloat64(health) - b3, 1},
		{"fallback", testutil.ToFloat64(miss) - b4, 1},
	}
	for _, d := range deltas {
		if d.got != d.want {
			t.Fatalf("%s delta = %v; want %v", d.name, d.got, d.want)
		}
	}
	if testutil.ToFloat64(httpInflight) != 0 {
		t.Fatalf("inflight should settle at 0")
	}
}
