package api

import (
	"errors"
	"net/http"

	"github.com/blueplan/noteshare-go/internal/noteshare/llm"
	"github.com/blueplan/noteshare-go/internal/noteshare/notes"
)

// errorStatus maps a service error to the status and message clients see.
// Nothing from err itself is exposed except validation messages.
func errorStatus(err error) (int, string) {
	var ne *notes.Error
	if !errors.As(err, &ne) {
		return http.StatusInternalServerError, MsgInternal
	}

	switch ne.Kind {
	case notes.KindValidation:
		return http.StatusBadRequest, ne.Message
	case notes.KindNotFound:
		return http.StatusNotFound, MsgNoteNotFound
	case notes.KindAuthentication:
		return http.StatusUnauthorized, MsgWrongPassword
	case notes.KindSummarization:
		return summaryStatus(ne.Failure)
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

func summaryStatus(kind llm.FailureKind) (int, string) {
	switch kind {
	case llm.FailureNotConfigured:
		return http.StatusInternalServerError, "AI service is not configured (GEMINI_API_KEY missing)"
	case llm.FailureAuth:
		return http.StatusInternalServerError, "AI service authentication failed (Invalid Gemini Key)"
	case llm.FailureRateLimited:
		return http.StatusTooManyRequests, "AI service rate limit reached. Please try again later or check your Gemini quota."
	case llm.FailureEmptyResult:
		return http.StatusBadGateway, "AI returned an empty response. Please try again."
	default:
		return http.StatusBadGateway, "AI summarization failed. Please try again."
	}
}
