package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"
)

// bagEmbedder counts words, giving every distinct lowercase word its own axis.
type bagEmbedder struct {
	dim   int
	err   error
	mu    sync.Mutex
	vocab map[string]int
	calls int
}

func (e *bagEmbedder) Space() EmbeddingSpace {
	return EmbeddingSpace{Model: "bag", Dimension: e.dim, Metric: MetricCosine}
}

func (e *bagEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.vocab == nil {
		e.vocab = make(map[string]int)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		for _, w := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			axis, ok := e.vocab[w]
			if !ok {
				axis = len(e.vocab) % e.dim
				e.vocab[w] = axis
			}
			v[axis]++
		}
		l2normalize(v)
		out[i] = v
	}
	return out, nil
}

// keywordGenerator answers "Paris" only when asked about France's capital and the
// context carries the fact; everything else gets the refusal.
func keywordGenerator() *fakeGenerator {
	return &fakeGenerator{fn: func(prompt string) (string, error) {
		i := strings.LastIndex(prompt, "Question: ")
		if i < 0 {
			return "", errors.New("prompt has no question")
		}
		excerpts, question := prompt[:i], prompt[i:]
		if strings.Contains(question, "capital of France") && strings.Contains(excerpts, "Paris is the capital of France") {
			return "Paris", nil
		}
		return RefusalAnswer, nil
	}}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []AskRecord
	err  error
}

func (m *memRecorder) Record(_ context.Context, rec AskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return m.err
}

const testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func fillerTrack(lang string, fact string) CaptionTrack {
	var texts []string
	for i := 0; i < 600; i++ {
		texts = append(texts, "Weather today seems mild and rivers run calm.")
		if i == 300 && fact != "" {
			texts = append(texts, fact)
		}
	}
	return track(lang, texts...)
}

func newTestPipeline(t *testing.T, c Collaborators, opts Options) *Pipeline {
	t.Helper()
	p, err := NewPipeline(c, opts)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPipelineAnswersFromTranscript(t *testing.T) {
	rec := &memRecorder{}
	src := &fakeCaptions{tracks: map[string]CaptionTrack{"en": fillerTrack("en", "Paris is the capital of France.")}}
	tr := &fakeTranslator{}
	p := newTestPipeline(t, Collaborators{
		Captions:   src,
		Translator: tr,
		Embedder:   &bagEmbedder{dim: 128},
		Generator:  keywordGenerator(),
	}, Options{Recorder: rec})

	res, err := p.Ask(context.Background(), testVideoURL, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != "Paris" {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.VideoID != "dQw4w9WgXcQ" || res.Language != "en" {
		t.Errorf("result = %+v", res)
	}
	if res.Passages <= RetrievalK {
		t.Fatalf("transcript produced only %d passages", res.Passages)
	}
	if len(res.Retrieved) != RetrievalK {
		t.Errorf("retrieved %d, want %d", len(res.Retrieved), RetrievalK)
	}
	if !strings.Contains(res.Retrieved[0].Text, "capital of France") {
		t.Errorf("top passage = %q", Preview(res.Retrieved[0].Text))
	}
	if tr.calls != 1 || tr.target != "en" {
		t.Errorf("translator calls = %d target = %q", tr.calls, tr.target)
	}
	if len(rec.recs) != 1 || rec.recs[0].Answer != "Paris" || rec.recs[0].ErrorKind != "" {
		t.Errorf("records = %+v", rec.recs)
	}
}

func TestPipelineScenario(t *testing.T) {
	src := &fakeCaptions{tracks: map[string]CaptionTrack{"en": track("en", "Paris is the capital of France.")}}
	p := newTestPipeline(t, Collaborators{
		Captions:   src,
		Translator: &fakeTranslator{},
		Embedder:   &bagEmbedder{dim: 64},
		Generator:  keywordGenerator(),
	}, Options{})

	tests := []struct {
		question string
		want     string
	}{
		{"What is the capital of France?", "Paris"},
		{"What is the population of Tokyo?", RefusalAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			res, err := p.Ask(context.Background(), testVideoURL, tt.question)
			if err != nil {
				t.Fatalf("Ask: %v", err)
			}
			if !strings.Contains(res.Answer, tt.want) {
				t.Errorf("answer = %q, want %q", res.Answer, tt.want)
			}
			if res.Passages != 1 || len(res.Retrieved) != 1 {
				t.Errorf("passages = %d retrieved = %d", res.Passages, len(res.Retrieved))
			}
		})
	}
}

func TestPipelineRefusesWithoutEvidence(t *testing.T) {
	src := &fakeCaptions{tracks: map[string]CaptionTrack{"": fillerTrack("de", "")}}
	p := newTestPipeline(t, Collaborators{
		Captions:   src,
		Translator: &fakeTranslator{},
		Embedder:   &bagEmbedder{dim: 128},
		Generator:  keywordGenerator(),
	}, Options{})

	res, err := p.Ask(context.Background(), testVideoURL, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != RefusalAnswer {
		t.Errorf("answer = %q, want refusal", res.Answer)
	}
	if res.Language != "de" || src.calls != 2 {
		t.Errorf("language = %q calls = %d", res.Language, src.calls)
	}
}

func TestPipelineFailures(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		captions    *fakeCaptions
		translator  *fakeTranslator
		embedder    *bagEmbedder
		opts        Options
		wantKind    ErrorKind
		wantTimeout bool
		wantTrCalls int
	}{
		{
			name:     "invalid url",
			url:      "https://example.com/v",
			captions: &fakeCaptions{},
			wantKind: KindInvalidLocator,
		},
		{
			name:     "captions disabled",
			captions: &fakeCaptions{err: ErrCaptionsDisabled},
			wantKind: KindCaptionsDisabled,
		},
		{
			name:     "no captions",
			captions: &fakeCaptions{},
			wantKind: KindCaptionsUnavailable,
		},
		{
			name:        "translation fails",
			translator:  &fakeTranslator{fn: func(string, string) (string, error) { return "", errors.New("429") }},
			wantKind:    KindTranslation,
			wantTrCalls: 1,
		},
		{
			name:        "embedding fails",
			embedder:    &bagEmbedder{dim: 64, err: errors.New("quota")},
			wantKind:    KindEmbedding,
			wantTrCalls: 1,
		},
		{
			name:        "translate deadline",
			opts:        Options{TranslateTimeout: 20 * time.Millisecond},
			wantKind:    KindTranslation,
			wantTimeout: true,
			wantTrCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.url == "" {
				tt.url = testVideoURL
			}
			if tt.captions == nil {
				tt.captions = &fakeCaptions{tracks: map[string]CaptionTrack{"en": fillerTrack("en", "")}}
			}
			if tt.translator == nil {
				tt.translator = &fakeTranslator{}
			}
			if tt.embedder == nil {
				tt.embedder = &bagEmbedder{dim: 64}
			}
			var tc Translator = tt.translator
			if tt.wantTimeout {
				tc = blockingTranslator{tt.translator}
			}
			gen := keywordGenerator()
			rec := &memRecorder{err: errors.New("disk full")}
			tt.opts.Recorder = rec
			p := newTestPipeline(t, Collaborators{
				Captions:   tt.captions,
				Translator: tc,
				Embedder:   tt.embedder,
				Generator:  gen,
			}, tt.opts)

			res, err := p.Ask(context.Background(), tt.url, "What is the capital of France?")
			if KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %q, want %q (err %v)", KindOf(err), tt.wantKind, err)
			}
			if IsTimeout(err) != tt.wantTimeout {
				t.Errorf("IsTimeout = %v, want %v", IsTimeout(err), tt.wantTimeout)
			}
			if res.Answer != "" || res.Retrieved != nil {
				t.Errorf("partial result returned: %+v", res)
			}
			if tt.translator.calls != tt.wantTrCalls {
				t.Errorf("translator calls = %d, want %d", tt.translator.calls, tt.wantTrCalls)
			}
			if gen.calls != 0 {
				t.Errorf("generator called %d times", gen.calls)
			}
			if len(rec.recs) != 1 || rec.recs[0].ErrorKind != tt.wantKind {
				t.Errorf("records = %+v", rec.recs)
			}
		})
	}
}

// blockingTranslator waits for its deadline.
type blockingTranslator struct{ counter *fakeTranslator }

func (b blockingTranslator) Translate(ctx context.Context, _, _ string) (string, error) {
	b.counter.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

func TestPipelineGenerationFailure(t *testing.T) {
	p := newTestPipeline(t, Collaborators{
		Captions:   &fakeCaptions{tracks: map[string]CaptionTrack{"en": fillerTrack("en", "")}},
		Translator: &fakeTranslator{},
		Embedder:   &bagEmbedder{dim: 64},
		Generator:  &fakeGenerator{fn: func(string) (string, error) { return "", errors.New("overloaded") }},
	}, Options{})

	res, err := p.Ask(context.Background(), testVideoURL, "q?")
	if KindOf(err) != KindGeneration {
		t.Fatalf("kind = %q (err %v)", KindOf(err), err)
	}
	if res.VideoID != "dQw4w9WgXcQ" || res.Answer != "" {
		t.Errorf("result = %+v", res)
	}
}

func TestNewPipelineDefaults(t *testing.T) {
	if _, err := NewPipeline(Collaborators{}, Options{}); err == nil {
		t.Error("expected error for missing collaborators")
	}
	p := newTestPipeline(t, Collaborators{
		Captions:   &fakeCaptions{},
		Translator: &fakeTranslator{},
		Embedder:   &bagEmbedder{dim: 8},
		Generator:  keywordGenerator(),
	}, Options{})
	if strings.Join(p.opts.Languages, ",") != "en,hi" || p.opts.Target != "en" {
		t.Errorf("languages = %v target = %q", p.opts.Languages, p.opts.Target)
	}
	if p.opts.K != RetrievalK || p.opts.Chunker != DefaultChunker() {
		t.Errorf("k = %d chunker = %+v", p.opts.K, p.opts.Chunker)
	}
	if p.opts.GenerateTimeout != DefaultGenerateTimeout {
		t.Errorf("generate timeout = %v", p.opts.GenerateTimeout)
	}
}

func TestPipelineConcurrentAsks(t *testing.T) {
	p := newTestPipeline(t, Collaborators{
		Captions:   &syncCaptions{track: fillerTrack("en", "Paris is the capital of France.")},
		Translator: identityTranslator{},
		Embedder:   &bagEmbedder{dim: 128},
		Generator:  &syncGenerator{gen: keywordGenerator()},
	}, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Ask(context.Background(), testVideoURL, "What is the capital of France?")
			if err == nil && res.Answer != "Paris" {
				err = errors.New("unexpected answer " + res.Answer)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

type syncCaptions struct{ track CaptionTrack }

func (s *syncCaptions) FetchCaptions(context.Context, string, []string) (CaptionTrack, error) {
	return s.track, nil
}

type identityTranslator struct{}

func (identityTranslator) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

type syncGenerator struct {
	mu  sync.Mutex
	gen *fakeGenerator
}

func (s *syncGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.Generate(ctx, prompt)
}
