package httpapi

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
		wantVary   bool
	}{
		{"configured origin", []string{" https://apex.example.com "}, http.MethodGet, "https://apex.example.com", http.StatusOK, "https://apex.example.com", true},
		{"wildcard preflight", []string{"*"}, http.MethodOptions, "https://apex.example.com", http.StatusNoContent, "*", false},
		{"unknown origin", []string{"https://apex.example.com"}, http.MethodGet, "https://evil.example.com", http.StatusOK, "", false},
		{"no origin header", []string{"*"}, http.MethodGet, "", http.StatusOK, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tc.method, "/v1/leaderboards/PC", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed, okHandler()).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
			}
			if got := rec.Header().Get("Vary") == "Origin"; got != tc.wantVary {
				t.Fatalf("unexpected Vary header: %q", rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORSAllowsTokenHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/v1/overrides", nil)
	req.Header.Set("Origin", "https://apex.example.com")
	rec := httptest.NewRecorder()
	CORS([]string{"*"}, okHandler()).ServeHTTP(rec, req)

	headers := rec.Header().Get("Access-Control-Allow-Headers")
	for _, want := range []string{adminTokenHeader, internalJobTokenHeader} {
		if !slices.Contains(strings.Split(headers, ","), want) {
			t.Fatalf("expected %s in %q", want, headers)
		}
	}
}
