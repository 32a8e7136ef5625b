package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func guardedRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireKey(key))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, header, value string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

// TestRequireKeyOpenWhenUnset verifies an empty configured key disables
// the guard entirely.
func TestRequireKeyOpenWhenUnset(t *testing.T) {
	r := guardedRouter("")
	if code := get(r, "", ""); code != http.StatusOK {
		t.Errorf("expected 200 without key configured, got %d", code)
	}
}

// TestRequireKeyRejections verifies missing and wrong keys are told
// apart: absent credentials get 401, bad ones 403.
func TestRequireKeyRejections(t *testing.T) {
	r := guardedRouter("s3cret")

	if code := get(r, "", ""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing key, got %d", code)
	}
	if code := get(r, "X-API-Key", "wrong"); code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong key, got %d", code)
	}
	if code := get(r, "Authorization", "Bearer wrong"); code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong bearer token, got %d", code)
	}
}

// TestRequireKeyAcceptsEitherHeader verifies the key passes via
// X-API-Key and via an Authorization bearer token.
func TestRequireKeyAcceptsEitherHeader(t *testing.T) {
	r := guardedRouter("s3cret")

	if code := get(r, "X-API-Key", "s3cret"); code != http.StatusOK {
		t.Errorf("expected 200 via X-API-Key, got %d", code)
	}
	if code := get(r, "Authorization", "Bearer s3cret"); code != http.StatusOK {
		t.Errorf("expected 200 via bearer token, got %d", code)
	}
}
