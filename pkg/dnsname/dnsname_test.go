package dnsname

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Widgets Inc", "widgetsinc"},
		{"acme-corp", "acmecorp"},
		{"Órgão Público", "orgaopublico"},
		{"UPPER123", "upper123"},
		{"  ", ""},
		{"", ""},
		{"a.b.c", "abc"},
		{"données_été", "donneesete"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCapsLength(t *testing.T) {
	long := strings.Repeat("a", 100)
	if got := Normalize(long); len(got) != 63 {
		t.Fatalf("expected 63 chars, got %d", len(got))
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "Widgets & Sons, Ltd."
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Fatalf("normalization not idempotent: %q vs %q", once, twice)
	}
}

func TestNormalizeHost(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My Host.Example", "my-host.example"},
		{"-edge-.node-", "edge.node"},
		{"café.shop", "cafe.shop"},
	}
	for _, tc := range cases {
		if got := NormalizeHost(tc.in); got != tc.want {
			t.Fatalf("NormalizeHost(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
