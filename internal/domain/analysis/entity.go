package analysis

import (
	"time"
)

// Severity levels used by flagged patterns and metadata flags.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// RiskTier enum, ordered Critical > High > Medium > Low > Clean
type RiskTier string

const (
	RiskCritical RiskTier = "Critical"
	RiskHigh     RiskTier = "High"
	RiskMedium   RiskTier = "Medium"
	RiskLow      RiskTier = "Low"
	RiskClean    RiskTier = "Clean"
)

// rank maps a tier to its ordinal so results can be sorted highest-risk first.
func (t RiskTier) rank() int {
	switch t {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// FlagType enum for metadata flags
type FlagType string

const (
	FlagTyposquatting     FlagType = "typosquatting"
	FlagRecentPublication FlagType = "recent_publication"
	FlagLowDownloads      FlagType = "low_downloads"
	FlagSuspiciousAuthor  FlagType = "suspicious_author"
	FlagNetworking        FlagType = "networking_capabilities"
	FlagFileSystemAccess  FlagType = "filesystem_access"
	FlagProcessExecution  FlagType = "process_execution"
)

// Unit is one dependency package or source file under analysis.
// Identity is (Name, Version); Content may change between runs and is
// tracked through its fingerprint, never through identity.
type Unit struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Source       string   `json:"source,omitempty"`
	Content      string   `json:"-"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// FlaggedPattern is a line-level concern returned by deep analysis.
type FlaggedPattern struct {
	Line        int      `json:"line"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Snippet     string   `json:"code_snippet"`
}

// MetadataFlag is a cheap, locally or registry-derived concern.
type MetadataFlag struct {
	Type        FlagType `json:"flag_type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Result is the per-unit terminal artifact handed to the report renderer.
type Result struct {
	Unit            Unit             `json:"unit"`
	RiskTier        RiskTier         `json:"risk_score"`
	FlaggedPatterns []FlaggedPattern `json:"flagged_patterns"`
	MetadataFlags   []MetadataFlag   `json:"metadata_flags"`
	AnalysisText    string           `json:"analysis,omitempty"`
	CacheHit        bool             `json:"cache_hit,omitempty"`
}

// CachedResult is a prior analysis loaded from the result cache.
type CachedResult struct {
	ID              int64            `json:"id"`
	Name            string           `json:"package_name"`
	Version         string           `json:"package_version"`
	Fingerprint     string           `json:"content_hash"`
	AnalysisText    string           `json:"analysis"`
	FlaggedPatterns []FlaggedPattern `json:"flagged_patterns"`
	ModelID         string           `json:"llm_model"`
	ScanDate        time.Time        `json:"scan_date"`
}

// CacheStats summarizes cache contents.
type CacheStats struct {
	TotalEntries int64 `json:"total_entries"`
	Recent7Days  int64 `json:"recent_7_days"`
}

// PackageStats reports how often a package has been scanned.
type PackageStats struct {
	Name      string    `json:"package_name"`
	ScanCount int64     `json:"scan_count"`
	LastScan  time.Time `json:"last_scan_date"`
}

// SessionStats is one scan run's cache accounting, owned by the coordinator.
type SessionStats struct {
	TotalUnits int `json:"total_units"`
	CacheHits  int `json:"cache_hits"`
	NewScans   int `json:"new_scans"`
}

// RegistryMetadata is what a best-effort registry lookup yields.
// Downloads is nil when the registry did not report a count; the absence
// itself is treated as a low-downloads signal.
type RegistryMetadata struct {
	CreatedAt time.Time
	Downloads *int64
}
