package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"serde", "serde", 0},
		{"serde", "sede", 1},
		{"tokio", "tokyio", 1},
		{"clap", "clep", 1},
		{"completely", "different", 8},
		{"", "abc", 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Levenshtein(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
		assert.Equal(t, tc.want, Levenshtein(tc.b, tc.a), "distance must be symmetric")
	}
}

func TestTyposquatDetection(t *testing.T) {
	c := NewClassifier(DefaultLists())

	// Identical names are never typosquats.
	assert.Empty(t, c.Typosquat("serde"))
	// Distance 1 from serde.
	assert.Equal(t, "serde", c.Typosquat("sede"))
	// Legitimate companion crate, distance > 2.
	assert.Empty(t, c.Typosquat("serde-json"))
	assert.Empty(t, c.Typosquat("walkdir"))
}

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultLists())

	assert.Equal(t, SkipDeep, c.Classify("serde"), "trusted names skip deep analysis")
	assert.Equal(t, ForceDeep, c.Classify("malicious-example"))
	assert.Equal(t, ForceDeep, c.Classify("sede"), "typosquats force deep analysis")
	assert.Equal(t, ForceDeep, c.Classify("backdoor-utils"), "suspicious substring")
	assert.Equal(t, SkipDeep, c.Classify("some-ordinary-helper"), "default is skip")
}

func TestOrderKeepsEnumerationOrderWithinGroups(t *testing.T) {
	c := NewClassifier(DefaultLists())
	units := []Unit{
		{Name: "serde"},
		{Name: "sede"},
		{Name: "left-pad"},
		{Name: "backdoor-utils"},
	}
	deep, light := c.Order(units)

	assert.Equal(t, []string{"sede", "backdoor-utils"}, unitNames(deep))
	assert.Equal(t, []string{"serde", "left-pad"}, unitNames(light))
}

func unitNames(units []Unit) []string {
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	return names
}
