package helpers

import "testing"

func TestCompileGlobs(t *testing.T) {
	globs, err := CompileGlobs([]string{"*.csv", "plant_?.tsv"})
	if err != nil {
		t.Fatalf("CompileGlobs: %v", err)
	}
	cases := map[string]bool{
		"assets.csv":  true,
		"plant_a.tsv": true,
		"plant.tsv":   false,
		"notes.txt":   false,
	}
	for name, want := range cases {
		if got := MatchAny(globs, name); got != want {
			t.Errorf("MatchAny(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := CompileGlobs([]string{" "}); err == nil {
		t.Fatal("expected empty pattern error")
	}
	if _, err := CompileGlobs([]string{"[abc"}); err == nil {
		t.Fatal("expected malformed pattern error")
	}
}
