package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/ids"
	"montage/internal/pkg/logger"
)

func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Config{Level: "debug", Format: "json", Output: buf})
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(logger.RequestIDKey).(string)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates new request ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/jobs", nil))

		reqID := rec.Header().Get(RequestIDHeader)
		if !ids.Valid("req", reqID) {
			t.Errorf("expected minted req id, got %q", reqID)
		}
		if seen != reqID {
			t.Errorf("context id %q does not match header %q", seen, reqID)
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/jobs", nil)
		req.Header.Set(RequestIDHeader, "existing-id-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "existing-id-123" {
			t.Errorf("expected preserved request ID, got %s", got)
		}
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/jobs", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); len(got) > 128 {
			t.Errorf("oversized id was echoed back")
		}
	})
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := Logging(testLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/slideshows", nil))

			var last map[string]any
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				_ = json.Unmarshal([]byte(line), &last)
			}
			if last["msg"] != "request completed" || last["level"] != tt.level {
				t.Errorf("unexpected completion entry %v", last)
			}
			if last["status"] != float64(tt.status) || last["size"] != float64(4) {
				t.Errorf("expected status and size, got %v", last)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	handler := Recovery(testLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"INTERNAL_ERROR"`) {
		t.Errorf("expected error envelope, got %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var hasDeadline bool
	handler := Timeout(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !hasDeadline {
		t.Error("expected request context deadline")
	}

	handler = Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if hasDeadline {
		t.Error("zero timeout should not add a deadline")
	}
}

func TestWrapHandler(t *testing.T) {
	var buf bytes.Buffer
	log := testLogger(&buf)

	t.Run("successful handler", func(t *testing.T) {
		handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusCreated)
			return nil
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/jobs", nil))
		if rec.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rec.Code)
		}
	})

	t.Run("validation error keeps field details", func(t *testing.T) {
		handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
			return errors.ValidationField("slides[1].darkening", "darkening must be within [0,1]")
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/slideshows", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		if env.Error.Code != "VALIDATION_ERROR" || env.Error.Message != "darkening must be within [0,1]" {
			t.Errorf("unexpected envelope %+v", env)
		}
		if env.Error.Details["field"] != "slides[1].darkening" {
			t.Errorf("expected field detail, got %v", env.Error.Details)
		}
	})

	t.Run("render failure is logged at error level with stack", func(t *testing.T) {
		buf.Reset()
		handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
			return errors.Encoder(fmt.Errorf("exit status 1"), "Conversion failed!")
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/slideshows", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Conversion failed!") {
			t.Errorf("expected encoder output in body, got %s", rec.Body.String())
		}
		if !strings.Contains(buf.String(), `"stack"`) || !strings.Contains(buf.String(), `"ERROR"`) {
			t.Errorf("expected stack in error log, got %s", buf.String())
		}
	})

	t.Run("plain error hides internals", func(t *testing.T) {
		handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
			return context.DeadlineExceeded
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if strings.Contains(rec.Body.String(), "deadline") {
			t.Errorf("expected generic message, got %s", rec.Body.String())
		}
	})
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		code     errors.Code
		expected int
	}{
		{errors.CodeValidation, 400},
		{errors.CodeNotFound, 404},
		{errors.CodeDecode, 422},
		{errors.CodeCanceled, 499},
		{errors.CodeResourceExhaust, 507},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteErrorResponse(rec, tt.code, `say "hi"`, nil)

			if rec.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("unexpected content type %q", ct)
			}
			var env map[string]map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("body is not valid JSON: %v", err)
			}
			if env["error"]["message"] != `say "hi"` {
				t.Errorf("message not round-tripped: %v", env)
			}
		})
	}
}
