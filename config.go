package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"

	"github.com/anatolykoptev/go_vidqa/internal/engine"
	"github.com/anatolykoptev/go_vidqa/internal/engine/history"
	"github.com/anatolykoptev/go_vidqa/internal/engine/sources"
)

func loadConfig() (engine.Config, error) {
	c := engine.Config{
		Port:        env.Str("PORT", "5000"),
		CORSOrigins: env.List("CORS_ORIGINS", ""),

		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:           env.Str("LLM_MODEL", "gemini-2.0-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 2048),

		EmbeddingAPIBase: env.Str("EMBEDDING_API_BASE", engine.DefaultEmbeddingBase),
		EmbeddingModel:   env.Str("EMBEDDING_MODEL", engine.DefaultEmbeddingSpace.Model),
		EmbeddingDim:     env.Int("EMBEDDING_DIM", engine.DefaultEmbeddingSpace.Dimension),

		TargetLanguage: env.Str("TARGET_LANGUAGE", "en"),
		TranslateURL:   env.Str("TRANSLATE_URL", engine.DefaultTranslateURL),

		CaptionTimeout:   env.Duration("CAPTION_TIMEOUT", engine.DefaultCaptionTimeout),
		TranslateTimeout: env.Duration("TRANSLATE_TIMEOUT", engine.DefaultTranslateTimeout),
		EmbedTimeout:     env.Duration("EMBED_TIMEOUT", engine.DefaultEmbedTimeout),
		GenerateTimeout:  env.Duration("GENERATE_TIMEOUT", engine.DefaultGenerateTimeout),

		BrowserTLS: env.Str("YT_BROWSER_TLS", "") == "true",

		RedisURL:             env.Str("REDIS_URL", ""),
		CacheTTL:             env.Duration("CACHE_TTL", 0),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 500),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),

		HistoryDB: env.Str("HISTORY_DB", ""),
	}
	// Embeddings default to the LLM key: both are Gemini in the stock setup.
	c.EmbeddingAPIKey = env.Str("EMBEDDING_API_KEY", c.LLMAPIKey)

	langs, err := engine.ParseLanguages(env.List("CAPTION_LANGUAGES", "en,hi"))
	if err != nil {
		return c, fmt.Errorf("CAPTION_LANGUAGES: %w", err)
	}
	c.CaptionLanguages = langs
	target, err := engine.ParseLanguages([]string{c.TargetLanguage})
	if err != nil || len(target) != 1 {
		return c, fmt.Errorf("TARGET_LANGUAGE %q is not a language code", c.TargetLanguage)
	}
	c.TargetLanguage = target[0]

	return c, c.Validate()
}

// app holds the wired pipeline and the resources that need closing.
type app struct {
	pipeline *engine.Pipeline
	history  *history.Store
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", slog.Any("error", err))
		}
	}
}

func buildApp(c engine.Config) (*app, error) {
	a := &app{}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}

	var browser *engine.BrowserClient
	if c.BrowserTLS {
		bc, err := engine.NewBrowserClient(15)
		if err != nil {
			slog.Warn("browser TLS client init failed, using net/http", slog.Any("error", err))
		} else {
			browser = bc
			slog.Info("browser TLS client initialized")
		}
	}

	var captions engine.CaptionSource = sources.NewYouTube(httpClient, browser, 4)
	if c.CacheTTL > 0 {
		cache := engine.NewCache(c.RedisURL, c.CacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
		a.closers = append(a.closers, cache.Close)
		captions = engine.CachedCaptions{Source: captions, Cache: cache}
	}

	embedder, err := engine.NewOpenAIEmbedder(c.EmbeddingAPIKey, c.EmbeddingAPIBase, engine.EmbeddingSpace{
		Model:     c.EmbeddingModel,
		Dimension: c.EmbeddingDim,
		Metric:    engine.MetricCosine,
	})
	if err != nil {
		return nil, err
	}

	llmClient := llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: c.GenerateTimeout}),
	)

	opts := engine.Options{
		Languages:        c.CaptionLanguages,
		Target:           c.TargetLanguage,
		Chunker:          engine.DefaultChunker(),
		K:                engine.RetrievalK,
		CaptionTimeout:   c.CaptionTimeout,
		TranslateTimeout: c.TranslateTimeout,
		EmbedTimeout:     c.EmbedTimeout,
		GenerateTimeout:  c.GenerateTimeout,
	}
	if c.HistoryDB != "" {
		store, err := history.Open(c.HistoryDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.history = store
		a.closers = append(a.closers, store.Close)
		opts.Recorder = store
		slog.Info("history enabled", slog.String("path", c.HistoryDB))
	}

	p, err := engine.NewPipeline(engine.Collaborators{
		Captions:   captions,
		Translator: engine.NewGoogleTranslator(c.TranslateURL, httpClient),
		Embedder:   embedder,
		Generator:  engine.NewLLMGenerator(llmClient),
	}, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}
