package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID_ReusesValidHeader(t *testing.T) {
	cases := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "valid uuid", incoming: "123e4567-e89b-12d3-a456-426614174000", reuse: true},
		{name: "garbage", incoming: "<script>", reuse: false},
		{name: "absent", incoming: "", reuse: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.Use(RequestID())
			var seen string
			r.GET("/", func(c *gin.Context) {
				seen = c.GetString(RequestIDKey)
				c.String(200, "ok")
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header=%q context=%q", got, seen)
			}
			if (got == tc.incoming) != tc.reuse {
				t.Fatalf("reuse=%v, header=%q incoming=%q", tc.reuse, got, tc.incoming)
			}
		})
	}
}
