package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func resolveLocale(t *testing.T, lookup CountryLookup, mutate func(*http.Request)) string {
	t.Helper()
	var got string
	handler := Locale("en", lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.10:4455"
	if mutate != nil {
		mutate(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestLocaleHeaderWins(t *testing.T) {
	got := resolveLocale(t, nil, func(r *http.Request) {
		r.Header.Set("X-Locale", "ID")
		r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	})
	if got != "id" {
		t.Fatalf("locale = %q, want id", got)
	}
}

func TestLocaleAcceptLanguage(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"en-US,en;q=0.9", "en"},
		{"pt-BR", "pt"},
		{"ja", "ja"},
		{"", "en"},
	}
	for _, tc := range cases {
		got := resolveLocale(t, nil, func(r *http.Request) {
			if tc.header != "" {
				r.Header.Set("Accept-Language", tc.header)
			}
		})
		if got != tc.want {
			t.Errorf("Accept-Language %q -> %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestLocaleGeoIPFallback(t *testing.T) {
	var seenIP string
	lookup := CountryLookup(func(ip string) (string, error) {
		seenIP = ip
		return "FR", nil
	})
	got := resolveLocale(t, lookup, nil)
	if got != "fr" {
		t.Fatalf("locale = %q, want fr", got)
	}
	if seenIP != "203.0.113.10" {
		t.Fatalf("lookup ip = %q", seenIP)
	}
}

func TestLocaleDefaultWhenLookupFails(t *testing.T) {
	lookup := CountryLookup(func(ip string) (string, error) {
		return "", errors.New("database unavailable")
	})
	if got := resolveLocale(t, lookup, nil); got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
}

func TestLocaleFromContextWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := LocaleFromContext(req.Context()); got != "" {
		t.Fatalf("locale = %q, want empty", got)
	}
}
