package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ha-sip-bridge/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(role string, allowed ...string) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u", role))
		c.Next()
	}, RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serveWithRole(RoleAdmin, RoleUser); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_ReadOnlyDeniedForServices(t *testing.T) {
	if code := serveWithRole(RoleReadOnly, RoleUser); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_RoleRequired(t *testing.T) {
	if code := serveWithRole("", RoleUser); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestIsKnown(t *testing.T) {
	if !IsKnown(RoleUser) || IsKnown("super_admin") {
		t.Fatalf("unexpected role table")
	}
}
