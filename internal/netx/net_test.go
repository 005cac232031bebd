package netx

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetch(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		}))
		defer srv.Close()

		body, ct, err := Fetch(context.Background(), srv.Client(), srv.URL+"/alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "png-bytes" || ct != "image/png" {
			t.Fatalf("unexpected result: %q %q", body, ct)
		}
	})

	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}))
		defer srv.Close()

		_, _, err := Fetch(context.Background(), nil, srv.URL)
		if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "nope") {
			t.Fatalf("expected 404 error with body, got %v", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("x"), MaxFetchSize+10))
		}))
		defer srv.Close()

		_, _, err := Fetch(context.Background(), srv.Client(), srv.URL)
		if err == nil || !strings.Contains(err.Error(), "exceeds") {
			t.Fatalf("expected size error, got %v", err)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		if _, _, err := Fetch(context.Background(), nil, "://bad"); err == nil {
			t.Fatal("expected error for malformed URL")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, _, err := Fetch(ctx, srv.Client(), srv.URL); err == nil {
			t.Fatal("expected error for cancelled context")
		}
	})
}
