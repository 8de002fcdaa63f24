package version

import "testing"

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2.0", "1.2", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.1.0", -1},
		{"2.0.0", "1.9.9", 1},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSatisfies(t *testing.T) {
	if !Satisfies("1.2.3", "1.2.0") {
		t.Error("expected 1.2.3 to satisfy minimum 1.2.0")
	}
	if Satisfies("1.1.0", "1.2.0") {
		t.Error("expected 1.1.0 to not satisfy minimum 1.2.0")
	}
}

func TestParseIgnoresMalformedSegments(t *testing.T) {
	got := Parse("1.x.3")
	want := [3]int{1, 0, 3}
	if got != want {
		t.Errorf("Parse malformed = %v, want %v", got, want)
	}
}
