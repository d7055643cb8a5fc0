package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inkfeed/inkfeed/internal/domain"
)

func statusServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetJSONDecodes(t *testing.T) {
	t.Parallel()

	srv := statusServer(t, http.StatusOK, `{"name":"ok"}`)
	var out struct {
		Name string `json:"name"`
	}
	if err := GetJSON(context.Background(), srv.Client(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Name != "ok" {
		t.Errorf("Name = %q", out.Name)
	}
}

func TestGetBodyTransiencyClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}
	for _, tc := range cases {
		srv := statusServer(t, tc.status, "nope")
		_, _, err := GetBody(context.Background(), srv.Client(), srv.URL)
		if err == nil {
			t.Fatalf("status %d: want error", tc.status)
		}
		if got := domain.IsTransient(err); got != tc.transient {
			t.Errorf("status %d: IsTransient = %v, want %v", tc.status, got, tc.transient)
		}
	}
}

func TestGetBodyNetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, _, err := GetBody(context.Background(), http.DefaultClient, srv.URL)
	if err == nil {
		t.Fatal("want error against a closed server")
	}
	if !domain.IsTransient(err) {
		t.Errorf("network error should be transient: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.Resolve("missing"); err == nil {
		t.Error("Resolve should fail for unknown kinds")
	}
}
