package permute

import (
	"reflect"
	"testing"
)

var testPatterns = []string{"%s", "dev-%s", "%s-backup", "%s-prod"}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func TestPermutationsIncludesExpectedVariants(t *testing.T) {
	names := Permutations("example.com", testPatterns)

	for _, want := range []string{"dev-example", "dev-example.com", "example-backup", "example-backup.com"} {
		if !contains(names, want) {
			t.Fatalf("expected %q in %v", want, names)
		}
	}
}

func TestPermutationsDeterministic(t *testing.T) {
	a := Permutations("example.com", testPatterns)
	b := Permutations("example.com", testPatterns)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical output, got %v then %v", a, b)
	}
}

func TestPermutationsFiniteAndUnique(t *testing.T) {
	names := Permutations("example.com", testPatterns)
	if len(names) == 0 || len(names) > 2*len(testPatterns) {
		t.Fatalf("expected at most %d names, got %d", 2*len(testPatterns), len(names))
	}
	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate candidate %q", n)
		}
		seen[n] = true
	}
}

func TestPermutationsReducesSubdomains(t *testing.T) {
	sub := Permutations("dev.api.example.com", testPatterns)
	root := Permutations("example.com", testPatterns)
	if !reflect.DeepEqual(sub, root) {
		t.Fatalf("expected subdomain to expand like its root: %v vs %v", sub, root)
	}
}

func TestPermutationsStripsWildcardAndWWW(t *testing.T) {
	wild := Permutations("*.example.com", testPatterns)
	www := Permutations("www.example.com", testPatterns)
	plain := Permutations("example.com", testPatterns)
	if !reflect.DeepEqual(wild, plain) || !reflect.DeepEqual(www, plain) {
		t.Fatalf("wildcard/www forms should expand like the plain domain")
	}
}

func TestPermutationsRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "localhost", "*."} {
		if got := Permutations(in, testPatterns); got != nil {
			t.Fatalf("expected nil for %q, got %v", in, got)
		}
	}
}

func TestPermutationsSkipsPatternsWithoutPlaceholder(t *testing.T) {
	names := Permutations("example.com", []string{"static-name", "%s-ok"})
	if contains(names, "static-name") {
		t.Fatalf("pattern without placeholder should be skipped, got %v", names)
	}
	if !contains(names, "example-ok") {
		t.Fatalf("expected example-ok in %v", names)
	}
}
