// internal/morse/table_test.go
package morse

import "testing"

func TestPattern(t *testing.T) {
	cases := map[rune]string{
		'A': ".-",
		'a': ".-",
		'E': ".",
		'0': "-----",
		'?': "..--..",
		'#': "",
	}
	for r, want := range cases {
		if got := Pattern(r); got != want {
			t.Fatalf("Pattern(%q) = %q, want %q", r, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	if got := Lookup("..."); got != 'S' {
		t.Fatalf("Lookup(...) = %q", got)
	}
	if got := Lookup("---"); got != 'O' {
		t.Fatalf("Lookup(---) = %q", got)
	}
	if got := Lookup(".-.-.-.-"); got != 0 {
		t.Fatalf("unknown pattern must return 0, got %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	for r := 'A'; r <= 'Z'; r++ {
		pat := Pattern(r)
		if pat == "" {
			t.Fatalf("no pattern for %q", r)
		}
		if got := Lookup(pat); got != r {
			t.Fatalf("round trip %q -> %q -> %q", r, pat, got)
		}
	}
}

func TestProsign(t *testing.T) {
	if got := Prosign("<AR>"); got != ".-.-." {
		t.Fatalf("Prosign(<AR>) = %q", got)
	}
	if got := Prosign("<ar>"); got != ".-.-." {
		t.Fatalf("prosigns are case-insensitive")
	}
	if got := Prosign("<XX>"); got != "" {
		t.Fatalf("unknown prosign = %q", got)
	}
}

func TestMatchProsign(t *testing.T) {
	pat, n := MatchProsign("<SK> 73")
	if pat != "...-.-" || n != 4 {
		t.Fatalf("MatchProsign = %q, %d", pat, n)
	}

	if pat, n := MatchProsign("<nope>"); pat != "" || n != 0 {
		t.Fatalf("unknown prosign must not match")
	}
	if pat, n := MatchProsign("plain"); pat != "" || n != 0 {
		t.Fatalf("non-prosign text must not match")
	}
	if pat, n := MatchProsign("<unterminated"); pat != "" || n != 0 {
		t.Fatalf("unterminated prosign must not match")
	}
}
