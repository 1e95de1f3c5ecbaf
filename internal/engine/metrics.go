package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// slowStage is the elapsed time above which TrackOperation warns.
const slowStage = 5 * time.Second

// Metrics tracks operational counters across the engine.
var metrics struct {
	Asks              atomic.Int64
	AskErrors         atomic.Int64
	CaptionFetches    atomic.Int64
	CaptionFallbacks  atomic.Int64
	CaptionErrors     atomic.Int64
	Translations      atomic.Int64
	TranslationErrors atomic.Int64
	EmbeddingCalls    atomic.Int64
	EmbeddingErrors   atomic.Int64
	LLMCalls          atomic.Int64
	LLMErrors         atomic.Int64
	YouTubeRequests   atomic.Int64
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
}

// metricKeys fixes the output order of FormatMetrics.
var metricKeys = []string{
	"asks", "ask_errors",
	"caption_fetches", "caption_fallbacks", "caption_errors",
	"translations", "translation_errors",
	"embedding_calls", "embedding_errors",
	"llm_calls", "llm_errors",
	"youtube_requests",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"asks":               metrics.Asks.Load(),
		"ask_errors":         metrics.AskErrors.Load(),
		"caption_fetches":    metrics.CaptionFetches.Load(),
		"caption_fallbacks":  metrics.CaptionFallbacks.Load(),
		"caption_errors":     metrics.CaptionErrors.Load(),
		"translations":       metrics.Translations.Load(),
		"translation_errors": metrics.TranslationErrors.Load(),
		"embedding_calls":    metrics.EmbeddingCalls.Load(),
		"embedding_errors":   metrics.EmbeddingErrors.Load(),
		"llm_calls":          metrics.LLMCalls.Load(),
		"llm_errors":         metrics.LLMErrors.Load(),
		"youtube_requests":   metrics.YouTubeRequests.Load(),
		"cache_hits":         metrics.CacheHits.Load(),
		"cache_misses":       metrics.CacheMisses.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// IncrYouTubeRequests is called by the sources package for every upstream request.
func IncrYouTubeRequests() { metrics.YouTubeRequests.Add(1) }

// TrackOperation logs a warning if an operation takes longer than slowStage.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > slowStage {
		slog.WarnContext(ctx, "slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
