package gemini

import (
	"fmt"
	"strings"

	"github.com/crateguard/crateguard/internal/domain/ai"
)

// The upstream payload shape is not guaranteed. Extraction is an ordered
// chain of independent strategies tried until one yields usable text; a
// strategy may also surface a hard failure (an embedded API error object).
// The final strategy always succeeds, so a parse ambiguity never loses a
// unit.
type strategy func(payload any) (string, bool, error)

var strategies = []strategy{
	extractEnvelope,
	extractBareScalar,
	extractWithErrorCheck,
	extractRecursive,
	extractCommonFields,
	extractTruncated,
	extractFallback,
}

// extractText runs the strategy chain over a decoded JSON payload.
func extractText(payload any) (string, error) {
	for _, s := range strategies {
		text, ok, err := s(payload)
		if err != nil {
			return "", err
		}
		if ok {
			return text, nil
		}
	}
	// Unreachable: extractFallback always matches.
	return "", ai.Transient(fmt.Errorf("no extraction strategy matched"))
}

// Strategy 1: the documented envelope, candidates[0].content.parts[0].text.
func extractEnvelope(payload any) (string, bool, error) {
	cand := firstCandidate(payload)
	if cand == nil {
		return "", false, nil
	}
	content, _ := cand["content"].(map[string]any)
	if content == nil {
		return "", false, nil
	}
	parts, _ := content["parts"].([]any)
	if len(parts) == 0 {
		return "", false, nil
	}
	part, _ := parts[0].(map[string]any)
	if part == nil {
		return "", false, nil
	}
	if text, ok := part["text"].(string); ok && text != "" {
		return text, true, nil
	}
	return "", false, nil
}

// Strategy 2: some endpoints return a bare text scalar.
func extractBareScalar(payload any) (string, bool, error) {
	if text, ok := payload.(string); ok && len(text) > 20 {
		return text, true, nil
	}
	return "", false, nil
}

// Strategy 3: loosely-typed decode that also surfaces an embedded error
// object as a hard failure.
func extractWithErrorCheck(payload any) (string, bool, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false, nil
	}
	if errObj, ok := obj["error"].(map[string]any); ok {
		code, _ := errObj["code"].(float64)
		message, _ := errObj["message"].(string)
		return "", false, classifyAPIError(int(code), message)
	}
	return "", false, nil
}

// classifyAPIError maps an upstream error object onto the domain taxonomy:
// quota exhaustion and invalid requests short-circuit retries, everything
// else stays retryable.
func classifyAPIError(code int, message string) error {
	lower := strings.ToLower(message)
	apiErr := fmt.Errorf("api error %d: %s", code, message)
	switch {
	case code == 429 || strings.Contains(lower, "quota"):
		return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, apiErr)
	case code == 400 || strings.Contains(lower, "invalid"):
		return fmt.Errorf("%w: %v", ai.ErrInvalidRequest, apiErr)
	default:
		return ai.Transient(apiErr)
	}
}

// Strategy 4: recursive search for any string field that looks like an
// analysis. Well-known keys are preferred before a blind walk.
func extractRecursive(payload any) (string, bool, error) {
	if text, ok := findText(payload); ok {
		return text, true, nil
	}
	return "", false, nil
}

var preferredKeys = []string{"text", "content", "message", "response", "analysis"}

func findText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		if len(v) > 10 && (strings.Contains(v, "ANALYSIS:") ||
			strings.Contains(v, "security") || strings.Contains(v, "analysis")) {
			return v, true
		}
	case map[string]any:
		for _, key := range preferredKeys {
			if child, ok := v[key]; ok {
				if text, found := findText(child); found {
					return text, true
				}
			}
		}
		for _, child := range v {
			if text, found := findText(child); found {
				return text, true
			}
		}
	case []any:
		for _, item := range v {
			if text, found := findText(item); found {
				return text, true
			}
		}
	}
	return "", false
}

// Strategy 5: a fixed list of commonly-used field names.
var commonFields = []string{"text", "content", "message", "response", "output", "result"}

func extractCommonFields(payload any) (string, bool, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false, nil
	}
	for _, field := range commonFields {
		if text, ok := obj[field].(string); ok && len(text) > 10 {
			return text, true, nil
		}
	}
	return "", false, nil
}

// Strategy 6: the explicit output-limit completion signal gets a synthetic
// analysis noting the truncation.
func extractTruncated(payload any) (string, bool, error) {
	cand := firstCandidate(payload)
	if cand == nil {
		return "", false, nil
	}
	if reason, _ := cand["finishReason"].(string); reason == "MAX_TOKENS" {
		return "ANALYSIS: Code analysis was truncated due to size limitations. " +
			"The file is large and requires manual review for comprehensive security analysis. " +
			"Focus on reviewing imports, unsafe blocks, network operations, and file system access patterns.", true, nil
	}
	return "", false, nil
}

// Strategy 7: last resort, so response-shape drift never aborts the unit.
func extractFallback(any) (string, bool, error) {
	return "ANALYSIS: Analysis completed but response format was unexpected. " +
		"The code was processed by the model but the response structure was not in the expected format. " +
		"Manual review recommended.", true, nil
}

func firstCandidate(payload any) map[string]any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	candidates, _ := obj["candidates"].([]any)
	if len(candidates) == 0 {
		return nil
	}
	cand, _ := candidates[0].(map[string]any)
	return cand
}
