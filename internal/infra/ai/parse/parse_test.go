package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

func TestResponseWithAnalysisAndPatterns(t *testing.T) {
	raw := `ANALYSIS: Two suspicious constructs found.

PATTERNS:
- Line: 42, Severity: High, Description: spawns a reverse shell, Code: Command::new("sh")
- Line: 7, Severity: Low, Description: reads env vars, Code: env::var("HOME")
this line does not match the grammar and is skipped
- Line: oops, Severity: High, Description: bad line number, Code: x`

	text, patterns := Response(raw)
	assert.Equal(t, "Two suspicious constructs found.", text)
	require.Len(t, patterns, 2)
	assert.Equal(t, 42, patterns[0].Line)
	assert.Equal(t, analysis.SeverityHigh, patterns[0].Severity)
	assert.Equal(t, "spawns a reverse shell", patterns[0].Description)
	assert.Equal(t, `Command::new("sh")`, patterns[0].Snippet)
	assert.Equal(t, analysis.SeverityLow, patterns[1].Severity)
}

func TestResponseWithoutPatternsSection(t *testing.T) {
	text, patterns := Response("ANALYSIS: No significant security issues detected.")
	assert.Equal(t, "No significant security issues detected.", text)
	assert.Empty(t, patterns)
}

func TestResponseWithoutMarkerUsesWholeText(t *testing.T) {
	text, patterns := Response("  the model rambled without structure  ")
	assert.Equal(t, "the model rambled without structure", text)
	assert.Empty(t, patterns)
}

func TestResponseEmptyAnalysisGetsDefault(t *testing.T) {
	text, _ := Response("ANALYSIS:")
	assert.Equal(t, DefaultAnalysis, text)

	text, _ = Response("")
	assert.Equal(t, DefaultAnalysis, text)
}
