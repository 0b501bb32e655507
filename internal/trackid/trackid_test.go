package trackid

import "testing"

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"34996":      "034996",
		"034996":     "034996",
		"2":          "000002",
		"123456":     "123456",
		"1234567":    "1234567",
		"TRALBUM042": "TRALBUM042",
		"":           "",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	for _, id := range []string{"7", "34996", "034996", "abc", "9999999"} {
		once := Canonical(id)
		if twice := Canonical(once); twice != once {
			t.Errorf("Canonical not idempotent for %q: %q then %q", id, once, twice)
		}
	}
}
