package analysis

import "strings"

// Decision is the per-unit triage outcome.
type Decision int

const (
	SkipDeep Decision = iota
	ForceDeep
)

// Lists holds the name sets the classifier consults. The zero value is
// unusable; build one with DefaultLists and override as needed.
type Lists struct {
	Trusted        map[string]struct{}
	KnownMalicious map[string]struct{}
	Popular        []string
	SuspiciousSubs []string
}

func nameSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// DefaultLists returns the built-in trusted/malicious/popular sets.
func DefaultLists() Lists {
	return Lists{
		Trusted: nameSet(
			"serde", "tokio", "clap", "anyhow", "thiserror", "regex",
			"chrono", "uuid", "log", "once_cell", "parking_lot", "rayon",
		),
		KnownMalicious: nameSet("malicious-example"),
		Popular: []string{
			"serde", "tokio", "clap", "reqwest", "anyhow", "thiserror",
		},
		SuspiciousSubs: []string{
			"steal", "hack", "backdoor", "malware", "virus", "trojan",
			"keylog", "password", "credit", "bank", "wallet", "bitcoin",
			"mining", "miner", "crypto", "shell", "reverse", "payload",
		},
	}
}

// Classifier decides per unit whether the expensive deep-analysis path runs.
// The default answer is SkipDeep to conserve the external call budget.
type Classifier struct {
	lists Lists
}

func NewClassifier(lists Lists) *Classifier {
	return &Classifier{lists: lists}
}

// Classify returns the triage decision for a unit name.
func (c *Classifier) Classify(name string) Decision {
	if _, ok := c.lists.Trusted[name]; ok {
		return SkipDeep
	}
	if _, ok := c.lists.KnownMalicious[name]; ok {
		return ForceDeep
	}
	if c.Typosquat(name) != "" {
		return ForceDeep
	}
	for _, sub := range c.lists.SuspiciousSubs {
		if strings.Contains(name, sub) {
			return ForceDeep
		}
	}
	return SkipDeep
}

// Typosquat returns the popular package the name imitates, or "" when the
// name is not within edit distance 2 of any popular name. Identical names
// are not typosquats. Advisory only; false positives are acceptable.
func (c *Classifier) Typosquat(name string) string {
	for _, popular := range c.lists.Popular {
		d := Levenshtein(name, popular)
		if d > 0 && d <= 2 {
			return popular
		}
	}
	return ""
}

// Order splits units into the deep group followed by the light group,
// preserving enumeration order inside each.
func (c *Classifier) Order(units []Unit) (deep, light []Unit) {
	for _, u := range units {
		if c.Classify(u.Name) == ForceDeep {
			deep = append(deep, u)
		} else {
			light = append(light, u)
		}
	}
	return deep, light
}

// Levenshtein computes the standard edit distance between two strings.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
