package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) set(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = t
}

// TestClient_BearerAttached verifies a set token is sent as a bearer
// credential with a unique X-Request-ID alongside it.
func TestClient_BearerAttached(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Tokens: &staticTokens{token: "tok-123"}, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Get(context.Background(), "/api/zones", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID header missing")
	}
}

// TestClient_TokenReadAtSendTime verifies token rotation takes effect on the
// next call without rebuilding the client.
func TestClient_TokenReadAtSendTime(t *testing.T) {
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tokens := &staticTokens{}
	c, err := New(Config{BaseURL: srv.URL, Tokens: tokens, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if _, err := c.Get(ctx, "/a", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	tokens.set("rotated")
	if _, err := c.Get(ctx, "/a", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if auths[0] != "" {
		t.Errorf("first call Authorization = %q, want empty", auths[0])
	}
	if auths[1] != "Bearer rotated" {
		t.Errorf("second call Authorization = %q, want Bearer rotated", auths[1])
	}
}

// TestClient_Unauthorized_WithBearer verifies a 401 on an authenticated
// request fires the unauthorized hook and classifies as KindUnauthorized.
func TestClient_Unauthorized_WithBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"unauthorized","message":"Token expired"}`))
	}))
	defer srv.Close()

	cleared := 0
	c, err := New(Config{
		BaseURL:        srv.URL,
		Tokens:         &staticTokens{token: "stale"},
		OnUnauthorized: func() { cleared++ },
		Logger:         zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), "/api/auth/me", nil)
	if KindOf(err) != KindUnauthorized {
		t.Errorf("KindOf() = %v, want unauthorized", KindOf(err))
	}
	if cleared != 1 {
		t.Errorf("unauthorized hook calls = %d, want 1", cleared)
	}

	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if ge.Code != "unauthorized" || ge.Message != "Token expired" {
		t.Errorf("normalized error = %q/%q", ge.Code, ge.Message)
	}
}

// TestClient_Unauthorized_NoBearer verifies a 401 on an unauthenticated
// request (a failed login) never fires the unauthorized hook.
func TestClient_Unauthorized_NoBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"invalid_credentials","message":"Wrong password"}`))
	}))
	defer srv.Close()

	cleared := 0
	c, err := New(Config{
		BaseURL:        srv.URL,
		Tokens:         &staticTokens{},
		OnUnauthorized: func() { cleared++ },
		Logger:         zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Post(context.Background(), "/api/auth/login", map[string]string{"login": "a", "password": "b"})
	if KindOf(err) != KindUnauthorized {
		t.Errorf("KindOf() = %v, want unauthorized", KindOf(err))
	}
	if cleared != 0 {
		t.Errorf("unauthorized hook calls = %d, want 0 for bearer-less 401", cleared)
	}
}

// TestClient_ErrorTaxonomy verifies status ranges map to the documented kinds
// and unparseable bodies fall back to the generic unknown error.
func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  Kind
		wantCode  string
		wantMsg   string
		retryable bool
	}{
		{"structured 400", 400, `{"code":"validation_error","message":"Name required"}`, KindClient, "validation_error", "Name required", false},
		{"structured 404", 404, `{"code":"not_found","message":"Zone not found"}`, KindClient, "not_found", "Zone not found", false},
		{"structured 500", 500, `{"code":"internal","message":"boom"}`, KindServer, "internal", "boom", true},
		{"unparseable 500", 500, `<html>oops</html>`, KindServer, "unknown", "An unexpected error occurred", true},
		{"empty body 503", 503, ``, KindServer, "unknown", "An unexpected error occurred", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL, Logger: zap.NewNop()})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			_, err = c.Get(context.Background(), "/x", nil)
			var ge *Error
			if !errors.As(err, &ge) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if ge.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", ge.Kind, tt.wantKind)
			}
			if ge.Code != tt.wantCode || ge.Message != tt.wantMsg {
				t.Errorf("Code/Message = %q/%q, want %q/%q", ge.Code, ge.Message, tt.wantCode, tt.wantMsg)
			}
			if ge.Status != tt.status {
				t.Errorf("Status = %d, want %d", ge.Status, tt.status)
			}
			if Retryable(err) != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", Retryable(err), tt.retryable)
			}
		})
	}
}

// TestClient_TransportFailure verifies a connection failure classifies as
// KindNetwork and is retryable.
func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c, err := New(Config{BaseURL: srv.URL, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), "/x", nil)
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %v, want network", KindOf(err))
	}
	if !Retryable(err) {
		t.Error("Retryable() = false, want true for network failure")
	}
}

// TestClient_Timeout verifies a response slower than the ceiling classifies
// as KindNetwork.
func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() { close(release); srv.Close() }()

	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), "/slow", nil)
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %v, want network for timeout", KindOf(err))
	}
}

// TestClient_QueryAndBody verifies query encoding and the JSON body round trip.
func TestClient_QueryAndBody(t *testing.T) {
	var gotQuery, gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	q := url.Values{}
	q.Set("limit", "10")
	q.Set("offset", "20")
	if _, err := c.Do(context.Background(), http.MethodPost, "/api/zones", map[string]string{"name": "Home"}, q); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if gotQuery != "limit=10&offset=20" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotBody != `{"name":"Home"}` {
		t.Errorf("body = %q", gotBody)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

// TestNew_InvalidBaseURL verifies relative or empty base URLs are rejected.
func TestNew_InvalidBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "not-a-url"}); err == nil {
		t.Error("New(relative) error = nil, want error")
	}
	if _, err := New(Config{BaseURL: ""}); err == nil {
		t.Error("New(empty) error = nil, want error")
	}
}
