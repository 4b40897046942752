package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/psaab/aelc/pkg/dialplan"
)

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// authStatus runs one request through the middleware and returns the
// response status, checking the challenge header on rejections.
func authStatus(t *testing.T, h http.Handler, path string, header ...string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") != `Basic realm="aeld API"` {
		t.Errorf("%s: 401 without the challenge header", path)
	}
	return w.Code
}

func TestAuthCredentials(t *testing.T) {
	h := authMiddleware(AuthConfig{
		Users:   map[string]string{"ops": "hunter2"},
		APIKeys: []string{"key-one", "key-two"},
	}, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tests := []struct {
		name   string
		header []string
		want   int
	}{
		{"none", nil, http.StatusUnauthorized},
		{"basic", []string{"Authorization", basicAuth("ops", "hunter2")}, http.StatusOK},
		{"basic wrong password", []string{"Authorization", basicAuth("ops", "hunter3")}, http.StatusUnauthorized},
		{"basic unknown user", []string{"Authorization", basicAuth("root", "hunter2")}, http.StatusUnauthorized},
		{"basic without colon", []string{"Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte("ops"))}, http.StatusUnauthorized},
		{"basic not base64", []string{"Authorization", "Basic %%%"}, http.StatusUnauthorized},
		{"bearer first key", []string{"Authorization", "Bearer key-one"}, http.StatusOK},
		{"bearer second key", []string{"Authorization", "Bearer key-two"}, http.StatusOK},
		{"bearer prefix of a key", []string{"Authorization", "Bearer key-"}, http.StatusUnauthorized},
		{"x-api-key", []string{"X-API-Key", "key-two"}, http.StatusOK},
		{"x-api-key wrong", []string{"X-API-Key", "key-three"}, http.StatusUnauthorized},
		{"digest", []string{"Authorization", "Digest username=ops"}, http.StatusUnauthorized},
		{"bad header, good key", []string{"Authorization", "Bearer nope", "X-API-Key", "key-one"}, http.StatusOK},
	}
	for _, tt := range tests {
		if got := authStatus(t, h, "/api/v1/dialplan", tt.header...); got != tt.want {
			t.Errorf("%s: status %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestAuthPublicPaths(t *testing.T) {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	tests := []struct {
		public []string
		path   string
		want   int
	}{
		{nil, "/health", http.StatusOK},
		{nil, "/metrics", http.StatusOK},
		{nil, "/api/v1/status", http.StatusUnauthorized},
		{[]string{"/health"}, "/metrics", http.StatusUnauthorized},
		{[]string{"/health", "/api/v1/status"}, "/api/v1/status", http.StatusOK},
		{[]string{}, "/health", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		h := authMiddleware(AuthConfig{Public: tt.public}, noop)
		if got := authStatus(t, h, tt.path); got != tt.want {
			t.Errorf("public %v, %s: status %d, want %d", tt.public, tt.path, got, tt.want)
		}
	}
}

func TestServerRequiresAuth(t *testing.T) {
	s := NewServer(Config{
		Store: dialplan.New(1),
		Auth:  &AuthConfig{APIKeys: []string{"k"}},
	})
	h := s.httpServer.Handler

	if got := authStatus(t, h, "/health"); got != http.StatusOK {
		t.Errorf("/health: %d", got)
	}
	if got := authStatus(t, h, "/api/v1/status"); got != http.StatusUnauthorized {
		t.Errorf("/api/v1/status without a key: %d", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-API-Key", "k")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || w.Code != http.StatusOK || !resp.Success {
		t.Errorf("/api/v1/status with a key: %d %s", w.Code, w.Body.String())
	}
}
