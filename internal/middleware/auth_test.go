package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newAuthTestRouter(keys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewAPIKeyAuth(keys).Middleware())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		header     string
		value      string
		wantStatus int
	}{
		{
			name:       "valid X-API-Key",
			keys:       []string{"secret-key"},
			header:     "X-API-Key",
			value:      "secret-key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid bearer token",
			keys:       []string{"secret-key"},
			header:     "Authorization",
			value:      "Bearer secret-key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "second configured key accepted",
			keys:       []string{"first", "second"},
			header:     "X-API-Key",
			value:      "second",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong key rejected",
			keys:       []string{"secret-key"},
			header:     "X-API-Key",
			value:      "wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing key rejected",
			keys:       []string{"secret-key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no configured keys rejects everything",
			keys:       nil,
			header:     "X-API-Key",
			value:      "anything",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "authorization without bearer prefix rejected",
			keys:       []string{"secret-key"},
			header:     "Authorization",
			value:      "secret-key",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthTestRouter(tt.keys)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
