package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateguard/crateguard/internal/domain/ai"
)

func envelope(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func testClient(t *testing.T, handler http.HandlerFunc, interval time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:      "test-key",
		Endpoint:    srv.URL,
		Model:       "gemini-test",
		MinInterval: interval,
		MaxRetries:  1,
	})
}

func TestAnalyzeCodeHappyPath(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		fmt.Fprint(w, envelope("ANALYSIS: clean\n\nPATTERNS:\n- Line: 5, Severity: Medium, Description: raw socket use, Code: TcpStream::connect"))
	}, time.Millisecond)

	resp, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
	require.NoError(t, err)
	assert.Equal(t, "clean", resp.Analysis)
	require.Len(t, resp.FlaggedPatterns, 1)
	assert.Equal(t, 5, resp.FlaggedPatterns[0].Line)
}

func TestAnalyzeCodeRateLimitsBackToBackCalls(t *testing.T) {
	const interval = 200 * time.Millisecond
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope("ANALYSIS: ok"))
	}, interval)

	ctx := context.Background()
	start := time.Now()
	_, err := c.AnalyzeCode(ctx, ai.Request{Prompt: "one"})
	require.NoError(t, err)
	_, err = c.AnalyzeCode(ctx, ai.Request{Prompt: "two"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), interval,
		"second call must wait out the minimum interval before dispatch")
}

func TestAnalyzeCodeRetriesTransientServerError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, envelope("ANALYSIS: recovered"))
	}, time.Millisecond)

	resp, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Analysis)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnalyzeCodeQuotaErrorShortCircuits(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}, time.Millisecond)

	_, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
	assert.Equal(t, int32(1), calls.Load(), "quota errors are never retried")
}

func TestAnalyzeCodeInvalidRequestShortCircuits(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}, time.Millisecond)

	_, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
	assert.ErrorIs(t, err, ai.ErrInvalidRequest)
}

func TestAnalyzeCodeUnknownShapeStillSucceeds(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"nothing": {"recognizable": true}}`)
	}, time.Millisecond)

	resp, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
	require.NoError(t, err, "shape drift must not error")
	assert.NotEmpty(t, resp.Analysis)
}

func TestAnalyzeCodeEmbeddedErrorObjectFails(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": 429, "message": "quota exceeded"}}`)
	}, time.Millisecond)

	_, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestAnalyzeCodeScalarJSONBodyStillSucceeds(t *testing.T) {
	for _, body := range []string{`42`, `true`, `null`} {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}, time.Millisecond)

		resp, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
		require.NoError(t, err, "valid JSON %s must reach the fallback, not error", body)
		assert.NotEmpty(t, resp.Analysis)
	}
}

func TestAnalyzeCodeMalformedBodyIsTransient(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway error</html>`)
	}, time.Millisecond)

	_, err := c.AnalyzeCode(context.Background(), ai.Request{Prompt: "code"})
	require.Error(t, err)
	var transient *ai.TransientError
	assert.ErrorAs(t, err, &transient)
}

func TestBackoffDelayCapped(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(2))
	assert.Equal(t, maxBackoff, backoffDelay(10))
}
