package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateguard/crateguard/internal/application"
	"github.com/crateguard/crateguard/internal/domain/ai"
	"github.com/crateguard/crateguard/internal/domain/analysis"
)

type fakeClient struct {
	mu       sync.Mutex
	prompts  []string
	response *ai.Response
	err      error
}

func (c *fakeClient) AnalyzeCode(ctx context.Context, req ai.Request) (*ai.Response, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, req.Prompt)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.response != nil {
		return c.response, nil
	}
	return &ai.Response{Analysis: "No security issues detected."}, nil
}

func (c *fakeClient) ModelID() string { return "fake-model" }

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

type cacheKey struct {
	name, version, fingerprint string
}

type fakeCache struct {
	entries  map[cacheKey]analysis.CachedResult
	sessions []analysis.SessionStats
	lookups  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[cacheKey]analysis.CachedResult{}}
}

func (c *fakeCache) Lookup(_ context.Context, name, version, fingerprint string) (*analysis.CachedResult, error) {
	c.lookups++
	entry, ok := c.entries[cacheKey{name, version, fingerprint}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *fakeCache) Store(_ context.Context, name, version, fingerprint, analysisText string, patterns []analysis.FlaggedPattern, modelID string) (int64, error) {
	c.entries[cacheKey{name, version, fingerprint}] = analysis.CachedResult{
		Name:            name,
		Version:         version,
		Fingerprint:     fingerprint,
		AnalysisText:    analysisText,
		FlaggedPatterns: patterns,
		ModelID:         modelID,
	}
	return int64(len(c.entries)), nil
}

func (c *fakeCache) Cleanup(context.Context, int) (int64, error) { return 0, nil }

func (c *fakeCache) Stats(context.Context) (analysis.CacheStats, error) {
	return analysis.CacheStats{}, nil
}
func (c *fakeCache) Export(context.Context) ([]analysis.CachedResult, error) { return nil, nil }
func (c *fakeCache) TopPackages(context.Context, int) ([]analysis.PackageStats, error) {
	return nil, nil
}

func (c *fakeCache) RecordSession(_ context.Context, stats analysis.SessionStats) error {
	c.sessions = append(c.sessions, stats)
	return nil
}

type fakeRegistry struct {
	metadata map[string]*analysis.RegistryMetadata
}

func (r *fakeRegistry) Metadata(_ context.Context, name string) (*analysis.RegistryMetadata, error) {
	return r.metadata[name], nil
}

func newService(client ai.Client, cache analysis.Cache) *Service {
	classifier := analysis.NewClassifier(analysis.DefaultLists())
	return &Service{
		Cache:          cache,
		Client:         client,
		Registry:       &fakeRegistry{},
		Classifier:     classifier,
		Deriver:        analysis.NewDeriver(classifier, time.Now),
		Scorer:         analysis.NewScorer(analysis.DefaultWeights()),
		Clock:          application.SystemClock{},
		InterUnitDelay: time.Millisecond,
	}
}

func depUnits() []analysis.Unit {
	units := []analysis.Unit{
		{Name: "serde", Version: "1.0.210", Source: "registry"},
		{Name: "sede", Version: "1.0.0", Source: "registry"},
		{Name: "backdoor-utils", Version: "0.1.0", Source: "registry"},
	}
	for i := range units {
		units[i].Content = fmt.Sprintf("%s %s", units[i].Name, units[i].Version)
	}
	return units
}

func resultFor(t *testing.T, report *Report, name string) analysis.Result {
	t.Helper()
	for _, r := range report.Results {
		if r.Unit.Name == name {
			return r
		}
	}
	t.Fatalf("no result for %s", name)
	return analysis.Result{}
}

func TestRunTriagesDependencies(t *testing.T) {
	client := &fakeClient{}
	svc := newService(client, newFakeCache())

	report, err := svc.Run(context.Background(), depUnits(), Options{})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	// Only the typosquat and the suspicious name go through deep analysis.
	assert.Equal(t, 2, client.calls())
	for _, p := range client.prompts {
		assert.NotContains(t, p, "serde 1.0.210")
	}

	serde := resultFor(t, report, "serde")
	assert.Equal(t, lightScanNote, serde.AnalysisText)
	assert.Equal(t, analysis.RiskClean, serde.RiskTier)

	sede := resultFor(t, report, "sede")
	assert.Equal(t, analysis.RiskHigh, sede.RiskTier)

	// Flagged units sort ahead of the clean one.
	assert.Equal(t, "serde", report.Results[len(report.Results)-1].Unit.Name)

	assert.Equal(t, 3, report.Stats.TotalUnits)
	assert.Equal(t, 2, report.Stats.NewScans)
	assert.Equal(t, 0, report.Stats.CacheHits)
	assert.NotEmpty(t, report.SessionID)
}

func TestRunCacheRoundTrip(t *testing.T) {
	client := &fakeClient{
		response: &ai.Response{
			Analysis: "Suspicious exfiltration routine.",
			FlaggedPatterns: []analysis.FlaggedPattern{
				{Line: 3, Severity: analysis.SeverityHigh, Description: "Sends data to remote host", Snippet: "send(payload)"},
			},
		},
	}
	cache := newFakeCache()
	svc := newService(client, cache)
	units := depUnits()

	first, err := svc.Run(context.Background(), units, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls())
	assert.Equal(t, 2, first.Stats.NewScans)

	second, err := svc.Run(context.Background(), units, Options{})
	require.NoError(t, err)

	// Second pass is served entirely from the cache.
	assert.Equal(t, 2, client.calls())
	assert.Equal(t, 2, second.Stats.CacheHits)
	assert.Equal(t, 0, second.Stats.NewScans)

	sede := resultFor(t, second, "sede")
	assert.True(t, sede.CacheHit)
	assert.Equal(t, "Suspicious exfiltration routine.", sede.AnalysisText)
	require.Len(t, sede.FlaggedPatterns, 1)
	// Risk is recomputed from cached patterns plus fresh metadata flags.
	assert.Equal(t, analysis.RiskCritical, sede.RiskTier)

	require.Len(t, cache.sessions, 2)
	assert.Equal(t, 2, cache.sessions[1].CacheHits)
}

func TestRunClientFailureBecomesNote(t *testing.T) {
	client := &fakeClient{err: errors.New("model unavailable")}
	cache := newFakeCache()
	svc := newService(client, cache)

	report, err := svc.Run(context.Background(), depUnits(), Options{})
	require.NoError(t, err)

	sede := resultFor(t, report, "sede")
	assert.True(t, strings.HasPrefix(sede.AnalysisText, "Failed to analyze source:"))
	assert.False(t, sede.CacheHit)
	// Metadata flags still score the unit.
	assert.Equal(t, analysis.RiskHigh, sede.RiskTier)
	// Failures are never cached.
	assert.Empty(t, cache.entries)
}

func TestRunNoCacheSkipsStore(t *testing.T) {
	client := &fakeClient{}
	cache := newFakeCache()
	svc := newService(client, cache)

	_, err := svc.Run(context.Background(), depUnits(), Options{NoCache: true})
	require.NoError(t, err)

	assert.Zero(t, cache.lookups)
	assert.Empty(t, cache.entries)
	assert.Empty(t, cache.sessions)
	assert.Equal(t, 2, client.calls())
}

func TestRunDeepAll(t *testing.T) {
	client := &fakeClient{}
	svc := newService(client, newFakeCache())

	report, err := svc.Run(context.Background(), depUnits(), Options{DeepAll: true})
	require.NoError(t, err)

	assert.Equal(t, 3, client.calls())
	serde := resultFor(t, report, "serde")
	assert.NotEqual(t, lightScanNote, serde.AnalysisText)
	assert.Equal(t, 3, report.Stats.NewScans)
}

func TestRunFileUnitSkipsRegistry(t *testing.T) {
	client := &fakeClient{}
	svc := newService(client, newFakeCache())
	svc.Registry = nil

	unit := analysis.Unit{
		Name:    "src/main.rs",
		Version: "abc123def456",
		Source:  "file",
		Content: "fn main() { std::process::Command::new(\"sh\"); }",
	}
	report, err := svc.Run(context.Background(), []analysis.Unit{unit}, Options{DeepAll: true})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	require.Equal(t, 1, client.calls())
	assert.Contains(t, client.prompts[0], "fn main()")
}
