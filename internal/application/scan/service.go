package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crateguard/crateguard/internal/application"
	"github.com/crateguard/crateguard/internal/domain/ai"
	"github.com/crateguard/crateguard/internal/domain/analysis"
	"github.com/crateguard/crateguard/internal/infra/ai/prompt"
)

const (
	// interUnitDelay spaces consecutive deep-analysis calls to protect the
	// shared call budget, on top of the client's own rate limiting.
	defaultInterUnitDelay = 4 * time.Second
	// callBudget bounds one client call; it is strictly shorter than
	// unitBudget so a timeout converts into a failure note, not a lost unit.
	defaultCallBudget = 45 * time.Second
	defaultUnitBudget = 60 * time.Second
)

const lightScanNote = "Quick scan - no deep code analysis performed for trusted package"

// Service sequences the per-unit pipeline: triage, cache lookup, deep
// analysis, flag derivation, scoring. Units are processed sequentially;
// the client's rate-limit contract only holds under a single caller.
type Service struct {
	Cache      analysis.Cache
	Client     ai.Client
	Registry   analysis.Registry
	Classifier *analysis.Classifier
	Deriver    *analysis.Deriver
	Scorer     *analysis.Scorer
	Clock      application.Clock

	InterUnitDelay time.Duration
	CallBudget     time.Duration
	UnitBudget     time.Duration

	Log *slog.Logger
}

// Options tunes a single run.
type Options struct {
	// DeepAll sends every unit down the deep path regardless of triage.
	DeepAll bool
	// NoCache forces a miss for every unit without touching the store.
	NoCache bool
}

// Report is the run's terminal artifact: ordered results plus the session
// accounting owned by this coordinator.
type Report struct {
	SessionID string                `json:"session_id"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Results   []analysis.Result     `json:"results"`
	Stats     analysis.SessionStats `json:"stats"`
}

func (s *Service) interUnitDelay() time.Duration {
	if s.InterUnitDelay > 0 {
		return s.InterUnitDelay
	}
	return defaultInterUnitDelay
}

func (s *Service) callBudget() time.Duration {
	if s.CallBudget > 0 {
		return s.CallBudget
	}
	return defaultCallBudget
}

func (s *Service) unitBudget() time.Duration {
	if s.UnitBudget > 0 {
		return s.UnitBudget
	}
	return defaultUnitBudget
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default().With("component", "scan")
}

// Run processes every unit to its terminal state. No unit is ever dropped:
// per-unit failures become failure-note results and the batch continues.
func (s *Service) Run(ctx context.Context, units []analysis.Unit, opts Options) (*Report, error) {
	started := s.Clock.Now()
	report := &Report{
		SessionID: uuid.New().String(),
		StartedAt: started,
	}
	report.Stats.TotalUnits = len(units)

	deep, light := s.Classifier.Order(units)
	if opts.DeepAll {
		deep = append(append([]analysis.Unit{}, deep...), light...)
		light = nil
	}
	s.log().Info("scan started",
		"session", report.SessionID, "units", len(units), "deep", len(deep))

	for i, unit := range deep {
		result, called := s.analyzeDeep(ctx, unit, opts, &report.Stats)
		report.Results = append(report.Results, result)

		if called && i < len(deep)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.interUnitDelay()):
			}
		}
	}

	for _, unit := range light {
		report.Results = append(report.Results, s.analyzeLight(ctx, unit))
	}

	analysis.SortByRisk(report.Results)
	report.Duration = s.Clock.Now().Sub(started)

	if !opts.NoCache {
		if err := s.Cache.RecordSession(ctx, report.Stats); err != nil {
			s.log().Warn("recording session stats failed", "err", err)
		}
	}
	s.log().Info("scan finished",
		"session", report.SessionID,
		"hits", report.Stats.CacheHits, "new", report.Stats.NewScans)
	return report, nil
}

// analyzeDeep runs one unit through cache, client, deriver, and scorer.
// The second return reports whether an external call was dispatched.
func (s *Service) analyzeDeep(ctx context.Context, unit analysis.Unit, opts Options, stats *analysis.SessionStats) (analysis.Result, bool) {
	unitCtx, cancel := context.WithTimeout(ctx, s.unitBudget())
	defer cancel()

	fingerprint := analysis.Fingerprint(unit.Content)
	flags := s.Deriver.Derive(unit, s.registryMetadata(unitCtx, unit))

	if !opts.NoCache {
		cached, err := s.Cache.Lookup(unitCtx, unit.Name, unit.Version, fingerprint)
		if err != nil {
			s.log().Warn("cache lookup failed, treating as miss",
				"unit", unit.Name, "err", err)
		}
		if cached != nil {
			stats.CacheHits++
			s.log().Debug("cache hit", "unit", unit.Name, "version", unit.Version)
			return analysis.Result{
				Unit:            unit,
				RiskTier:        s.Scorer.Score(flags, cached.FlaggedPatterns),
				FlaggedPatterns: cached.FlaggedPatterns,
				MetadataFlags:   flags,
				AnalysisText:    cached.AnalysisText,
				CacheHit:        true,
			}, false
		}
	}

	stats.NewScans++
	callCtx, cancelCall := context.WithTimeout(unitCtx, s.callBudget())
	defer cancelCall()

	resp, err := s.Client.AnalyzeCode(callCtx, ai.Request{Prompt: promptFor(unit)})
	if err != nil {
		// Terminal state is still Scored, carrying the failure note.
		s.log().Warn("deep analysis failed", "unit", unit.Name, "err", err)
		return analysis.Result{
			Unit:          unit,
			RiskTier:      s.Scorer.Score(flags, nil),
			MetadataFlags: flags,
			AnalysisText:  fmt.Sprintf("Failed to analyze source: %v", err),
		}, true
	}

	if !opts.NoCache {
		if _, err := s.Cache.Store(unitCtx, unit.Name, unit.Version, fingerprint,
			resp.Analysis, resp.FlaggedPatterns, s.Client.ModelID()); err != nil {
			s.log().Warn("cache store failed", "unit", unit.Name, "err", err)
		}
	}

	return analysis.Result{
		Unit:            unit,
		RiskTier:        s.Scorer.Score(flags, resp.FlaggedPatterns),
		FlaggedPatterns: resp.FlaggedPatterns,
		MetadataFlags:   flags,
		AnalysisText:    resp.Analysis,
	}, true
}

// analyzeLight evaluates metadata only; it never touches the client.
func (s *Service) analyzeLight(ctx context.Context, unit analysis.Unit) analysis.Result {
	flags := s.Deriver.Derive(unit, s.registryMetadata(ctx, unit))
	return analysis.Result{
		Unit:          unit,
		RiskTier:      s.Scorer.Score(flags, nil),
		MetadataFlags: flags,
		AnalysisText:  lightScanNote,
	}
}

func (s *Service) registryMetadata(ctx context.Context, unit analysis.Unit) *analysis.RegistryMetadata {
	if s.Registry == nil || unit.Source == "file" {
		return nil
	}
	meta, err := s.Registry.Metadata(ctx, unit.Name)
	if err != nil {
		return nil
	}
	return meta
}

func promptFor(unit analysis.Unit) string {
	if unit.Source == "file" {
		return prompt.ForCode(unit.Content)
	}
	return prompt.ForPackage(unit.Name, unit.Version, unit.Dependencies)
}
