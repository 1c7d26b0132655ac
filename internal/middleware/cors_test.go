package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func corsRouter(allowed []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(allowed))
	r.GET("/lessons", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/lessons", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func corsRequest(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/lessons", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
		wantVary   bool
	}{
		{"listed origin", []string{"http://console.local"}, http.MethodGet, "http://console.local", http.StatusOK, "http://console.local", true},
		{"unlisted origin", []string{"http://console.local"}, http.MethodGet, "http://evil.local", http.StatusOK, "", false},
		{"wildcard", []string{"*"}, http.MethodGet, "http://any.local", http.StatusOK, "*", false},
		{"nothing configured", nil, http.MethodGet, "http://console.local", http.StatusOK, "", false},
		{"same origin request", []string{"http://console.local"}, http.MethodGet, "", http.StatusOK, "", false},
		{"preflight allowed", []string{"http://console.local"}, http.MethodOptions, "http://console.local", http.StatusNoContent, "http://console.local", true},
		{"preflight refused", []string{"http://console.local"}, http.MethodOptions, "http://evil.local", http.StatusForbidden, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := corsRequest(corsRouter(tt.allowed), tt.method, tt.origin)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			if got := w.Header().Get("Vary") == "Origin"; got != tt.wantVary {
				t.Errorf("expected vary=%v, got header %q", tt.wantVary, w.Header().Get("Vary"))
			}
		})
	}
}
