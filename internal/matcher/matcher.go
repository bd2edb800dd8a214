package matcher

import (
	"fmt"
	"strings"

	ac "github.com/anknown/ahocorasick"
)

// Matcher scans retrieved content for configured keywords using an
// Aho-Corasick automaton. Matching is case-insensitive. A Matcher is
// immutable after New and safe for concurrent use by the worker pool.
type Matcher struct {
	machine  ac.Machine
	keywords []string
}

// New builds the automaton from an already-normalized keyword list.
func New(keywords []string) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords to match")
	}

	dict := make([][]rune, len(keywords))
	for i, kw := range keywords {
		dict[i] = []rune(strings.ToLower(kw))
	}

	m := &Matcher{keywords: keywords}
	if err := m.machine.Build(dict); err != nil {
		return nil, fmt.Errorf("build ACAutomaton: %w", err)
	}
	return m, nil
}

// Keywords returns the configured keyword list.
func (m *Matcher) Keywords() []string {
	return m.keywords
}

// Find returns the distinct keywords present in content.
func (m *Matcher) Find(content []byte) []string {
	if len(content) == 0 {
		return nil
	}

	lowered := strings.ToLower(string(content))
	terms := m.machine.MultiPatternSearch([]rune(lowered), false)

	matchesMap := make(map[string]bool)
	for _, term := range terms {
		matchesMap[string(term.Word)] = true
	}

	result := make([]string, 0, len(matchesMap))
	for k := range matchesMap {
		result = append(result, k)
	}
	return result
}

// Match reports whether any configured keyword appears in content.
func (m *Matcher) Match(content []byte) bool {
	return len(m.Find(content)) > 0
}
