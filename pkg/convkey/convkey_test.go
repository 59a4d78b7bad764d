package convkey

import (
	"errors"
	"testing"
)

func TestResolveOrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{"z-9", "a.0"},
		{"seller_44", "buyer_44"},
	}
	for _, p := range pairs {
		k1, err := Resolve(p[0], p[1], "p42")
		if err != nil {
			t.Fatalf("Resolve(%q,%q): %v", p[0], p[1], err)
		}
		k2, err := Resolve(p[1], p[0], "p42")
		if err != nil {
			t.Fatalf("Resolve(%q,%q): %v", p[1], p[0], err)
		}
		if k1 != k2 {
			t.Fatalf("keys differ by argument order: %v vs %v", k1, k2)
		}
		if k1.A >= k1.B {
			t.Fatalf("pair not canonical: %v", k1)
		}
	}
}

func TestDecomposeRoundtrip(t *testing.T) {
	cases := []struct{ a, b, ctx string }{
		{"u1", "u2", "p42"},
		{"buyer", "seller", BundleContext},
		{"x.y", "x.z", "listing_001"},
	}
	for _, c := range cases {
		k, err := Resolve(c.a, c.b, c.ctx)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		got, err := Decompose(k.String())
		if err != nil {
			t.Fatalf("Decompose(%q): %v", k.String(), err)
		}
		if got != k {
			t.Fatalf("roundtrip mismatch: %v != %v", got, k)
		}
		// pair membership is preserved regardless of original order
		if !got.Has(c.a) || !got.Has(c.b) {
			t.Fatalf("decomposed key lost a participant: %v", got)
		}
		if got.Context != c.ctx {
			t.Fatalf("context changed: %q != %q", got.Context, c.ctx)
		}
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	if _, err := Resolve("", "u2", "p1"); !errors.Is(err, ErrEmptyParticipant) {
		t.Fatalf("empty participant: got %v", err)
	}
	if _, err := Resolve("u1", "", "p1"); !errors.Is(err, ErrEmptyParticipant) {
		t.Fatalf("empty participant: got %v", err)
	}
	if _, err := Resolve("u1", "u1", "p1"); !errors.Is(err, ErrSameParticipant) {
		t.Fatalf("same participant: got %v", err)
	}
	// the separator can never appear inside a segment, so decomposition
	// stays unambiguous
	for _, bad := range []string{"u:1", "u 1", "", "ü1"} {
		if _, err := Resolve(bad, "u2", "p1"); err == nil {
			t.Fatalf("expected rejection of participant %q", bad)
		}
	}
	if _, err := Resolve("u1", "u2", "p:42"); !errors.Is(err, ErrBadSegment) {
		t.Fatalf("separator in context: got %v", err)
	}
}

func TestDecomposeClassifiesMalformed(t *testing.T) {
	malformed := []string{
		"",
		"u1",
		"u1:u2",
		"u1:u2:p42:extra",
		"u2:u1:p42", // pair not canonical
		"u1:u1:p42", // equal segments
		"u1::p42",
		":u2:p42",
		"u 1:u2:p42",
	}
	for _, id := range malformed {
		if _, err := Decompose(id); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decompose(%q): expected ErrMalformed, got %v", id, err)
		}
	}
}

func TestBundleKey(t *testing.T) {
	k, err := Resolve("u3", "u4", BundleContext)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !k.Bundle() {
		t.Fatalf("expected bundle key: %v", k)
	}
	if k.Other("u3") != "u4" || k.Other("u4") != "u3" || k.Other("u5") != "" {
		t.Fatalf("Other lookup wrong for %v", k)
	}
}
