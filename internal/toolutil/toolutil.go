// Package toolutil provides input handling shared by the HTTP API, the MCP tool and the CLI.
package toolutil

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_vidqa/internal/engine"
)

// ErrMissingField is returned when videoUrl or question is blank.
var ErrMissingField = errors.New("Missing videoUrl or question.") //nolint:staticcheck // user-facing message

// NormalizeAskInput trims both fields and rejects blanks.
func NormalizeAskInput(in engine.AskInput) (engine.AskInput, error) {
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.Question = strings.TrimSpace(in.Question)
	if in.VideoURL == "" || in.Question == "" {
		return in, ErrMissingField
	}
	return in, nil
}

// Describe maps a pipeline error to an HTTP status and a user-facing message.
func Describe(err error) (int, string) {
	if errors.Is(err, ErrMissingField) {
		return http.StatusBadRequest, ErrMissingField.Error()
	}
	kind := engine.KindOf(err)
	if engine.IsTimeout(err) {
		return http.StatusGatewayTimeout, timeoutMessage(kind)
	}
	switch kind {
	case engine.KindInvalidLocator:
		return http.StatusNotFound, "Invalid YouTube URL."
	case engine.KindCaptionsDisabled:
		return http.StatusNotFound, "No captions available for this video."
	case engine.KindCaptionsUnavailable:
		return http.StatusNotFound, "Transcript not available."
	case engine.KindTranslation:
		return http.StatusBadGateway, "Failed to translate the transcript."
	case engine.KindEmbedding:
		return http.StatusBadGateway, "Failed to index the transcript."
	case engine.KindGeneration:
		return http.StatusBadGateway, "Failed to generate an answer."
	}
	return http.StatusInternalServerError, "Failed to answer the question."
}

func timeoutMessage(kind engine.ErrorKind) string {
	switch kind {
	case engine.KindCaptionsDisabled, engine.KindCaptionsUnavailable:
		return "Timed out fetching the transcript."
	case engine.KindTranslation:
		return "Timed out translating the transcript."
	case engine.KindEmbedding:
		return "Timed out indexing the transcript."
	case engine.KindGeneration:
		return "Timed out generating an answer."
	}
	return "Timed out answering the question."
}
