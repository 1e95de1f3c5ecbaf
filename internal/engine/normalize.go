package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Translator converts text into the target language, detecting the source language.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// JoinCaptions concatenates entry texts in time order with single spaces.
func JoinCaptions(track CaptionTrack) string {
	parts := make([]string, 0, len(track.Entries))
	for _, e := range track.Entries {
		if t := strings.TrimSpace(e.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Normalize joins the track and translates it into target with a single translator call.
// Text already in target is passed through the translator too; it is expected to return it unchanged.
func Normalize(ctx context.Context, tr Translator, track CaptionTrack, target string) (string, error) {
	text := JoinCaptions(track)
	if text == "" {
		return "", newError(KindCaptionsUnavailable, fmt.Errorf("captions for %s contain no text: %w", track.VideoID, ErrCaptionsUnavailable))
	}

	metrics.Translations.Add(1)
	out, err := tr.Translate(ctx, text, target)
	if err != nil {
		metrics.TranslationErrors.Add(1)
		return "", newError(KindTranslation, fmt.Errorf("translate to %s: %w", target, err))
	}
	out = strings.TrimSpace(out)
	if out == "" {
		metrics.TranslationErrors.Add(1)
		return "", newError(KindTranslation, errors.New("translator returned empty text"))
	}
	return out, nil
}
