package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultTranslateURL is the public Google Translate endpoint used by browser widgets.
const DefaultTranslateURL = "https://translate.googleapis.com/translate_a/single"

// translatePieceRunes bounds a single request body; the endpoint rejects very long q values.
const translatePieceRunes = 4500

// GoogleTranslator translates text with the gtx Google Translate endpoint.
type GoogleTranslator struct {
	BaseURL         string
	HTTPClient      *http.Client
	MaxTries        uint
	InitialInterval time.Duration
}

// NewGoogleTranslator returns a translator with retry defaults matching the fetch layer.
func NewGoogleTranslator(baseURL string, client *http.Client) *GoogleTranslator {
	if baseURL == "" {
		baseURL = DefaultTranslateURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleTranslator{
		BaseURL:         baseURL,
		HTTPClient:      client,
		MaxTries:        3,
		InitialInterval: time.Second,
	}
}

// Translate auto-detects the source language and returns text in target.
// Long input is split at word boundaries and translated piece by piece.
func (g *GoogleTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	pieces := splitAtWords(text, translatePieceRunes)
	out := make([]string, 0, len(pieces))
	for i, p := range pieces {
		t, err := g.translatePiece(ctx, p, target)
		if err != nil {
			return "", fmt.Errorf("piece %d/%d: %w", i+1, len(pieces), err)
		}
		out = append(out, strings.TrimSpace(t))
	}
	return strings.Join(out, " "), nil
}

func (g *GoogleTranslator) translatePiece(ctx context.Context, text, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", target)
	q.Set("dt", "t")
	endpoint := g.BaseURL + "?" + q.Encode()
	form := url.Values{"q": {text}}.Encode()

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
		req.Header.Set("User-Agent", UserAgentChrome)

		resp, err := g.HTTPClient.Do(req)
		if err != nil {
			if isRetryable(err) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		defer resp.Body.Close()

		if IsRetryableStatus(resp.StatusCode) {
			return "", fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return "", backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, snippet))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
		if err != nil {
			return "", err
		}
		translated, err := parseGTXResponse(body)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		return translated, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.InitialInterval
	bo.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(g.MaxTries),
		backoff.WithMaxElapsedTime(time.Minute),
	)
}

// parseGTXResponse concatenates the translated segments of a gtx response:
// [[["translated","source",...], ...], null, "detected-lang", ...].
func parseGTXResponse(body []byte) (string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if len(top) == 0 {
		return "", errors.New("empty translate response")
	}
	var segments []json.RawMessage
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return "", fmt.Errorf("decode translate segments: %w", err)
	}
	var sb strings.Builder
	for _, raw := range segments {
		var seg []any
		if err := json.Unmarshal(raw, &seg); err != nil || len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no translated segments")
	}
	return sb.String(), nil
}

// splitAtWords cuts text into pieces of at most limit runes, preferring the last space.
func splitAtWords(text string, limit int) []string {
	runes := []rune(text)
	var pieces []string
	for len(runes) > limit {
		cut := lastIndexRune(runes[:limit], ' ')
		if cut <= 0 {
			cut = limit
		}
		pieces = append(pieces, string(runes[:cut]))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

func lastIndexRune(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
