package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Collaborators are the external services the pipeline calls.
type Collaborators struct {
	Captions   CaptionSource
	Translator Translator
	Embedder   Embedder
	Generator  Generator
}

// Options tune a Pipeline. Zero values fall back to defaults.
type Options struct {
	Languages []string // preferred caption languages, in order
	Target    string   // language every transcript is normalized into
	Chunker   Chunker
	K         int

	CaptionTimeout   time.Duration
	TranslateTimeout time.Duration
	EmbedTimeout     time.Duration
	GenerateTimeout  time.Duration

	Recorder Recorder // optional audit log
}

// Recorder persists a summary of every ask, successful or not.
type Recorder interface {
	Record(ctx context.Context, rec AskRecord) error
}

// AskRecord is the audit entry for one ask.
type AskRecord struct {
	ID        string        `json:"id"`
	VideoURL  string        `json:"video_url"`
	VideoID   string        `json:"video_id,omitempty"`
	Question  string        `json:"question"`
	Answer    string        `json:"answer,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Language  string        `json:"language,omitempty"`
	Passages  int           `json:"passages"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Pipeline answers questions about a video's spoken content.
// It is safe for concurrent use; each Ask owns all of its state.
type Pipeline struct {
	c    Collaborators
	opts Options
}

// Default stage deadlines.
const (
	DefaultCaptionTimeout   = 30 * time.Second
	DefaultTranslateTimeout = 60 * time.Second
	DefaultEmbedTimeout     = 60 * time.Second
	DefaultGenerateTimeout  = 90 * time.Second
)

// NewPipeline validates collaborators and fills option defaults.
func NewPipeline(c Collaborators, opts Options) (*Pipeline, error) {
	if c.Captions == nil || c.Translator == nil || c.Embedder == nil || c.Generator == nil {
		return nil, errors.New("pipeline: all collaborators are required")
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"en", "hi"}
	}
	if opts.Target == "" {
		opts.Target = "en"
	}
	if opts.Chunker.MaxLength <= 0 {
		opts.Chunker = DefaultChunker()
	}
	if opts.K <= 0 {
		opts.K = RetrievalK
	}
	if opts.CaptionTimeout <= 0 {
		opts.CaptionTimeout = DefaultCaptionTimeout
	}
	if opts.TranslateTimeout <= 0 {
		opts.TranslateTimeout = DefaultTranslateTimeout
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultEmbedTimeout
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	return &Pipeline{c: c, opts: opts}, nil
}

// Ask runs resolve → captions → normalize → chunk → index → retrieve → generate.
// Any stage failure aborts the request; no partial answer is returned.
func (p *Pipeline) Ask(ctx context.Context, videoURL, question string) (AskResult, error) {
	start := time.Now()
	reqID := uuid.NewString()
	log := slog.With(slog.String("request_id", reqID))
	metrics.Asks.Add(1)

	var res AskResult
	err := TrackOperation(ctx, "ask", func(ctx context.Context) error {
		var err error
		res, err = p.ask(ctx, log, videoURL, question)
		return err
	})

	elapsed := time.Since(start)
	if err != nil {
		metrics.AskErrors.Add(1)
		log.Warn("ask failed",
			slog.String("video_id", res.VideoID),
			slog.String("kind", string(KindOf(err))),
			slog.Bool("timeout", IsTimeout(err)),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err))
	} else {
		log.Info("ask answered",
			slog.String("video_id", res.VideoID),
			slog.Int("passages", res.Passages),
			slog.String("answer", Preview(res.Answer)),
			slog.Duration("elapsed", elapsed))
	}
	p.record(ctx, log, AskRecord{
		ID:        reqID,
		VideoURL:  videoURL,
		VideoID:   res.VideoID,
		Question:  question,
		Answer:    res.Answer,
		ErrorKind: errorKindForRecord(err),
		Language:  res.Language,
		Passages:  res.Passages,
		Duration:  elapsed,
		CreatedAt: start.UTC(),
	})
	if err != nil {
		return AskResult{VideoID: res.VideoID}, err
	}
	return res, nil
}

func (p *Pipeline) ask(ctx context.Context, log *slog.Logger, videoURL, question string) (AskResult, error) {
	var res AskResult

	videoID, err := ResolveVideoID(videoURL)
	if err != nil {
		return res, newError(KindInvalidLocator, err)
	}
	res.VideoID = videoID
	log.Debug("ask started", slog.String("video_id", videoID), slog.String("question", Preview(question)))

	track, err := withDeadline(ctx, p.opts.CaptionTimeout, func(ctx context.Context) (CaptionTrack, error) {
		return FetchCaptions(ctx, p.c.Captions, videoID, p.opts.Languages)
	})
	if err != nil {
		return res, err
	}
	res.Language = track.Language
	log.Debug("captions fetched",
		slog.String("language", track.Language),
		slog.Bool("generated", track.Generated),
		slog.Int("entries", len(track.Entries)))

	transcript, err := withDeadline(ctx, p.opts.TranslateTimeout, func(ctx context.Context) (string, error) {
		return Normalize(ctx, p.c.Translator, track, p.opts.Target)
	})
	if err != nil {
		return res, err
	}

	passages := p.opts.Chunker.Split(transcript)
	res.Passages = len(passages)

	idx, err := withDeadline(ctx, p.opts.EmbedTimeout, func(ctx context.Context) (*Index, error) {
		return BuildIndex(ctx, p.c.Embedder, passages)
	})
	if err != nil {
		return res, err
	}

	retrieved, err := withDeadline(ctx, p.opts.EmbedTimeout, func(ctx context.Context) ([]ScoredPassage, error) {
		return Retrieve(ctx, p.c.Embedder, idx, question, p.opts.K)
	})
	if err != nil {
		return res, err
	}
	res.Retrieved = retrieved

	answer, err := withDeadline(ctx, p.opts.GenerateTimeout, func(ctx context.Context) (string, error) {
		return GenerateAnswer(ctx, p.c.Generator, retrieved, question)
	})
	if err != nil {
		return res, err
	}
	res.Answer = answer
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, rec AskRecord) {
	if p.opts.Recorder == nil {
		return
	}
	// The request context may already be done; the audit write gets its own budget.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.opts.Recorder.Record(rctx, rec); err != nil {
		log.Warn("history: record failed", slog.Any("error", err))
	}
}

func errorKindForRecord(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != "" {
		return k
	}
	return "internal"
}
