package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := NewWithWriter("production", &buf)

	r := gin.New()
	r.Use(Middleware(l))
	var fromCtx, fromGin bool
	r.GET("/x", func(c *gin.Context) {
		fromGin = FromGin(c) != nil
		fromCtx = From(c.Request.Context()) != nil
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("request id not echoed")
	}
	if !fromGin || !fromCtx {
		t.Fatalf("request logger not attached")
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "abc" || entry["path"] != "/x" || entry["service"] != "ha-sip-bridge" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
}
