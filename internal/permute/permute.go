package permute

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Permutations expands an observed domain into candidate bucket names by
// applying each pattern to the domain's name label. Two forms come out of
// every pattern: the bare label form ("dev-example") and the form with the
// registrable suffix re-appended ("dev-example.com"). The result is
// deterministic, finite and free of duplicates; order follows the pattern
// list.
func Permutations(domain string, patterns []string) []string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "*.")
	domain = strings.TrimPrefix(domain, "www.")
	if domain == "" || !strings.Contains(domain, ".") {
		return nil
	}

	// Reduce subdomains to the registrable root so dev.api.example.com
	// and example.com expand to the same candidate set.
	root := domain
	if r, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		root = r
	}
	label, suffix, _ := strings.Cut(root, ".")
	if label == "" {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, 2*len(patterns))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, p := range patterns {
		if !strings.Contains(p, "%s") {
			continue
		}
		// Bucket names cannot start or end with a separator.
		name := strings.Trim(fmt.Sprintf(p, label), "-.")
		add(name)
		if suffix != "" {
			add(name + "." + suffix)
		}
	}
	return out
}
