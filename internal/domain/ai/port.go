package ai

import (
	"context"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

// Request carries one free-text prompt to the analysis capability.
type Request struct {
	Prompt string
}

// Response is the structured outcome of one deep-analysis call.
type Response struct {
	Analysis        string
	FlaggedPatterns []analysis.FlaggedPattern
}

// Client is the port every analysis provider implements.
type Client interface {
	AnalyzeCode(ctx context.Context, req Request) (*Response, error)
	// ModelID identifies the model used, recorded alongside cached results.
	ModelID() string
}
