package engine

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Config holds service configuration, loaded in main and passed down explicitly.
type Config struct {
	Port        string
	CORSOrigins []string

	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int

	EmbeddingAPIKey  string
	EmbeddingAPIBase string
	EmbeddingModel   string
	EmbeddingDim     int

	CaptionLanguages []string // preferred caption languages, in order
	TargetLanguage   string
	TranslateURL     string

	CaptionTimeout   time.Duration
	TranslateTimeout time.Duration
	EmbedTimeout     time.Duration
	GenerateTimeout  time.Duration

	BrowserTLS bool // fetch the watch page with a Chrome TLS fingerprint

	RedisURL             string
	CacheTTL             time.Duration // 0 disables caption caching
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HistoryDB string // sqlite path; empty disables the history log
}

// Validate checks the settings the pipeline cannot run without.
func (c Config) Validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if len(c.CaptionLanguages) == 0 {
		return fmt.Errorf("CAPTION_LANGUAGES is empty")
	}
	if c.TargetLanguage == "" {
		return fmt.Errorf("TARGET_LANGUAGE is empty")
	}
	return nil
}

// ParseLanguages canonicalizes BCP 47 language codes, dropping duplicates.
// "EN" and "en-us" become "en" and "en-US".
func ParseLanguages(codes []string) ([]string, error) {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", code, err)
		}
		s := tag.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
