package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CaptionSource fetches a caption track for a video.
// With non-empty langs it returns a track in one of them or ErrNoPreferredTrack;
// with no langs it returns the platform's default track.
// Owner-disabled captions are reported as ErrCaptionsDisabled.
type CaptionSource interface {
	FetchCaptions(ctx context.Context, videoID string, langs []string) (CaptionTrack, error)
}

// FetchCaptions applies the two-step language policy: preferred languages first,
// then whatever default track the video has. Disabled captions are never retried.
func FetchCaptions(ctx context.Context, src CaptionSource, videoID string, langs []string) (CaptionTrack, error) {
	metrics.CaptionFetches.Add(1)

	track, err := src.FetchCaptions(ctx, videoID, langs)
	if err == nil && len(track.Entries) > 0 {
		return track, nil
	}
	if errors.Is(err, ErrCaptionsDisabled) {
		metrics.CaptionErrors.Add(1)
		return CaptionTrack{}, newError(KindCaptionsDisabled, err)
	}
	if err == nil {
		err = errors.New("empty caption track")
	}
	slog.Debug("captions: preferred languages failed, trying default track",
		slog.String("id", videoID), slog.Any("langs", langs), slog.Any("error", err))

	metrics.CaptionFallbacks.Add(1)
	track, err = src.FetchCaptions(ctx, videoID, nil)
	switch {
	case errors.Is(err, ErrCaptionsDisabled):
		metrics.CaptionErrors.Add(1)
		return CaptionTrack{}, newError(KindCaptionsDisabled, err)
	case err != nil:
		metrics.CaptionErrors.Add(1)
		return CaptionTrack{}, newError(KindCaptionsUnavailable, fmt.Errorf("default track: %w", err))
	case len(track.Entries) == 0:
		metrics.CaptionErrors.Add(1)
		return CaptionTrack{}, newError(KindCaptionsUnavailable, fmt.Errorf("default track for %s: %w", videoID, ErrCaptionsUnavailable))
	}
	return track, nil
}
