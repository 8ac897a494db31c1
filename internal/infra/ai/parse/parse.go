// Package parse splits raw model output into the free-text analysis
// section and the structured findings section.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

const (
	analysisMarker = "ANALYSIS:"
	patternsMarker = "PATTERNS:"

	// DefaultAnalysis substitutes for an empty analysis section.
	DefaultAnalysis = "Security analysis completed."
)

var patternLine = regexp.MustCompile(
	`- Line: (\d+), Severity: (High|Medium|Low), Description: ([^,]+), Code: (.+)`)

// Response extracts the analysis text and flagged patterns from raw model
// output. Lines that do not match the findings grammar are ignored, not an
// error; a missing PATTERNS section yields an empty list.
func Response(raw string) (string, []analysis.FlaggedPattern) {
	var text string
	var patterns []analysis.FlaggedPattern

	if start := strings.Index(raw, analysisMarker); start >= 0 {
		section := raw[start+len(analysisMarker):]
		if pstart := strings.Index(section, patternsMarker); pstart >= 0 {
			text = strings.TrimSpace(section[:pstart])
			patterns = parsePatterns(section[pstart+len(patternsMarker):])
		} else {
			text = strings.TrimSpace(section)
		}
	} else {
		// No marker at all: the whole response is the analysis.
		text = strings.TrimSpace(raw)
	}

	if text == "" {
		text = DefaultAnalysis
	}
	return text, patterns
}

func parsePatterns(section string) []analysis.FlaggedPattern {
	var patterns []analysis.FlaggedPattern
	for _, line := range strings.Split(section, "\n") {
		m := patternLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineNum, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		patterns = append(patterns, analysis.FlaggedPattern{
			Line:        lineNum,
			Severity:    analysis.Severity(m[2]),
			Description: strings.TrimSpace(m[3]),
			Snippet:     strings.TrimSpace(m[4]),
		})
	}
	return patterns
}
