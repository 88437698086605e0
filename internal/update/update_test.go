package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clawdshartavenger/alta-parking-app/internal/config"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"v1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.0.1", -1},
		{"1.10.0", "1.9.0", 1},
		{"2.0", "1.9.9", 1},
		{"1.0", "1.0.0", 0},
		{"1.2.3-beta", "1.2.3", 0},
	}
	for _, tc := range cases {
		if got := CompareVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"1.3.0","url":"https://example.com/dl","notes":"fixes"}`))
	}))
	defer srv.Close()

	c := New(config.UpdateConfig{ManifestURL: srv.URL})
	res, err := c.Check(context.Background(), "1.2.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Newer {
		t.Fatal("expected newer release")
	}
	if res.Latest.Version != "1.3.0" {
		t.Fatalf("latest = %q", res.Latest.Version)
	}

	res, err = c.Check(context.Background(), "1.3.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Newer {
		t.Fatal("same version must not report newer")
	}
}

func TestCheckBadManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(config.UpdateConfig{ManifestURL: srv.URL})
	if _, err := c.Check(context.Background(), "1.0.0"); err == nil {
		t.Fatal("expected error for HTTP 404")
	}
}
