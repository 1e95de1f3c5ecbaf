package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure for callers that map it to a response.
type ErrorKind string

const (
	KindInvalidLocator      ErrorKind = "invalid_locator"
	KindCaptionsDisabled    ErrorKind = "captions_disabled"
	KindCaptionsUnavailable ErrorKind = "captions_unavailable"
	KindTranslation         ErrorKind = "translation_failed"
	KindEmbedding           ErrorKind = "embedding_failed"
	KindGeneration          ErrorKind = "generation_failed"
)

// Sentinel errors returned by caption sources and the locator resolver.
var (
	ErrInvalidLocator = errors.New("no video id in url")

	// ErrCaptionsDisabled means the owner turned captions off. Terminal.
	ErrCaptionsDisabled = errors.New("captions are disabled for this video")

	// ErrNoPreferredTrack means captions exist but none in the requested languages.
	ErrNoPreferredTrack = errors.New("no caption track in preferred languages")

	ErrCaptionsUnavailable = errors.New("captions unavailable")
)

// Error is the typed failure returned by Pipeline.Ask.
type Error struct {
	Kind    ErrorKind
	Err     error
	Timeout bool // the stage deadline expired
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s (timeout): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps err under kind. Deadline expiry is detected from the chain.
func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err, Timeout: isDeadline(err)}
}

// KindOf returns the kind of a pipeline error, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTimeout reports whether err is a pipeline error caused by a stage deadline.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Timeout
}
