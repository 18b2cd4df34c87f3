package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JLChnToZ/shota-url/internal/errx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"hello": "world"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "not_found", "no such thing")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "not_found" || body.Message != "no such thing" {
		t.Errorf("body = %+v", body)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		kind errx.Kind
		want int
	}{
		{errx.NotFound, http.StatusNotFound},
		{errx.Conflict, http.StatusConflict},
		{errx.Invalid, http.StatusBadRequest},
		{errx.Unavailable, http.StatusServiceUnavailable},
		{errx.Internal, http.StatusInternalServerError},
		{errx.Unknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusOf(tt.kind); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		kind errx.Kind
		want string
	}{
		{errx.NotFound, "not_found"},
		{errx.Conflict, "duplicate_key"},
		{errx.Invalid, "validation_failed"},
		{errx.Unavailable, "unavailable"},
		{errx.Internal, "internal_error"},
	}

	for _, tt := range tests {
		if got := CodeOf(tt.kind); got != tt.want {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name  string  `json:"name"`
		Count float64 `json:"count"`
	}

	newRequest := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	t.Run("decodes a valid body", func(t *testing.T) {
		v, err := DecodeJSON[payload](newRequest(`{"name": "x", "count": 2}`))
		if err != nil {
			t.Fatalf("DecodeJSON() error = %v", err)
		}
		if v.Name != "x" || v.Count != 2 {
			t.Errorf("decoded = %+v", v)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		if _, err := DecodeJSON[payload](newRequest(`{nope`)); err == nil {
			t.Error("DecodeJSON() accepted malformed JSON")
		}
	})

	t.Run("rejects a wrong field type", func(t *testing.T) {
		_, err := DecodeJSON[payload](newRequest(`{"count": "many"}`))
		if err == nil || !strings.Contains(err.Error(), "count") {
			t.Errorf("DecodeJSON() error = %v, want field name in message", err)
		}
	})

	t.Run("rejects an empty body", func(t *testing.T) {
		if _, err := DecodeJSON[payload](newRequest("")); err == nil {
			t.Error("DecodeJSON() accepted an empty body")
		}
	})

	t.Run("rejects trailing data", func(t *testing.T) {
		_, err := DecodeJSON[payload](newRequest(`{"name": "x"} {"name": "y"}`))
		if err == nil || !strings.Contains(err.Error(), "trailing") {
			t.Errorf("DecodeJSON() error = %v, want trailing data rejection", err)
		}
	})

	t.Run("rejects an oversized body", func(t *testing.T) {
		big := `{"name": "` + strings.Repeat("a", MaxRequestBodySize) + `"}`
		if _, err := DecodeJSON[payload](newRequest(big)); err == nil {
			t.Error("DecodeJSON() accepted an oversized body")
		}
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates an id when absent", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if seen == "" {
			t.Error("no request id in context")
		}
		if got := rec.Header().Get(RequestIDHeader); got != seen {
			t.Errorf("header id %q does not match context id %q", got, seen)
		}
	})

	t.Run("honors an inbound id", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "inbound-id")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != "inbound-id" {
			t.Errorf("request id = %q, want inbound-id", seen)
		}
	})
}

func TestGetRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty ctx) = %q, want empty", got)
	}
	ctx := WithRequestID(context.Background(), "abc")
	if got := GetRequestID(ctx); got != "abc" {
		t.Errorf("GetRequestID() = %q, want abc", got)
	}
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(tag("a"), tag("b"), tag("c"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "h")
		}),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ""); got != "abch" {
		t.Errorf("execution order = %q, want abch", got)
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "internal_error" {
		t.Errorf("error code = %q", body.Error)
	}
}

func TestLogger(t *testing.T) {
	// The middleware must pass the request through untouched and preserve
	// the handler's status code.
	handler := Logger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
