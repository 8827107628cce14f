package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("scrambled"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)

	data, err := f.Fetch(context.Background(), srv.URL+"/sample")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "scrambled" {
		t.Errorf("data = %q", data)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}
