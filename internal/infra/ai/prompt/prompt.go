package prompt

import (
	"fmt"
	"strings"
)

const (
	// Content above conciseThreshold gets the shorter template; above
	// truncateThreshold it is cut to a head/tail slice first.
	conciseThreshold  = 12000
	truncateThreshold = 15000
	sliceSize         = 7500

	elisionMarker = "// ... (middle section truncated for analysis) ..."
)

// ForCode builds the deep-analysis prompt for a block of source code,
// switching to a concise template and eliding the middle of oversized
// input. Deterministic: the branch depends only on len(code).
func ForCode(code string) string {
	if len(code) <= conciseThreshold {
		return fmt.Sprintf(`Analyze this Rust code for security vulnerabilities, malicious behavior, backdoors, and unsafe patterns.

Code to analyze:
%s

Format response as:
ANALYSIS: [Your security analysis summary]

PATTERNS:
- Line: [number], Severity: [High/Medium/Low], Description: [description], Code: [snippet]

If no issues found: ANALYSIS: No significant security issues detected.`, fence(code))
	}

	analyzed := "full"
	body := code
	if len(code) > truncateThreshold {
		analyzed = "truncated"
		body = code[:sliceSize] + "\n\n" + elisionMarker + "\n\n" + code[len(code)-sliceSize:]
	}
	return fmt.Sprintf(`Analyze this Rust code for security vulnerabilities and suspicious patterns. Focus on imports, unsafe blocks, network calls, file operations, and external command execution.

Code (%d chars, %s analyzed):
%s

Provide a brief analysis focusing on security concerns. If issues found, list them as:
PATTERNS:
- Line: [number], Severity: [High/Medium/Low], Description: [description], Code: [snippet]`, len(code), analyzed, fence(body))
}

// ForPackage builds the deep-analysis prompt for a declared dependency,
// where only metadata (not source) is available.
func ForPackage(name, version string, dependencies []string) string {
	return fmt.Sprintf(`Analyze this Rust package for potential security threats, supply chain attacks, or malicious behavior:

Package: %s v%s
Dependencies: %s

Look specifically for:
1. Unexpected network requests or data exfiltration
2. File system manipulation beyond normal operations
3. Process execution or system command usage
4. Cryptographic operations that could be backdoors
5. Code obfuscation or suspicious patterns
6. Supply chain attack indicators

Format response as:
ANALYSIS: [Your security analysis summary]

PATTERNS:
- Line: [number], Severity: [High/Medium/Low], Description: [description], Code: [snippet]`,
		name, version, strings.Join(dependencies, ", "))
}

func fence(code string) string {
	return "```rust\n" + code + "\n```"
}
