package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler always answers 200 "ok".
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func callWithKey(t *testing.T, h http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPIKey_ModeNone_PassesThrough(t *testing.T) {
	h := APIKey("none", "x-api-key", "secret")(okHandler)
	if rr := callWithKey(t, h, "x-api-key", ""); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKey_EmptyKey_PassesThrough(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "")(okHandler)
	if rr := callWithKey(t, h, "x-api-key", ""); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKey_ValidKey(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	rr := callWithKey(t, h, "x-api-key", "secret")
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("body: got %q, want ok", rr.Body.String())
	}
}

func TestAPIKey_MissingKey(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	rr := callWithKey(t, h, "x-api-key", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestAPIKey_WrongKey(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	if rr := callWithKey(t, h, "x-api-key", "guess"); rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestAPIKey_CustomHeader(t *testing.T) {
	h := APIKey("apikey", "x-phi-key", "secret")(okHandler)
	if rr := callWithKey(t, h, "x-api-key", "secret"); rr.Code != http.StatusUnauthorized {
		t.Errorf("key in default header: got %d, want 401", rr.Code)
	}
	if rr := callWithKey(t, h, "x-phi-key", "secret"); rr.Code != http.StatusOK {
		t.Errorf("key in custom header: got %d, want 200", rr.Code)
	}
}

func TestAPIKey_WebSocketUpgrade(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	upgrade := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/ws/stream", http.StatusUnauthorized},
		{"/ws/stream?api_key=wrong", http.StatusUnauthorized},
		{"/ws/stream?api_key=secret", http.StatusOK},
	}
	for _, tc := range tests {
		if rr := upgrade(tc.target); rr.Code != tc.want {
			t.Errorf("%s: status %d, want %d", tc.target, rr.Code, tc.want)
		}
	}
}

func TestAPIKey_QueryKeyIgnoredWithoutUpgrade(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/runs?api_key=secret", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}
