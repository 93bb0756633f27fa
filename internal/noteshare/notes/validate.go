package notes

import (
	"strings"
	"unicode/utf8"
)

// MaxTextLength is counted in characters of the trimmed text.
const MaxTextLength = 500

const (
	MsgTextRequired     = "Note text is required and cannot be empty"
	MsgTextTooLong      = "Note must be 500 characters or less"
	MsgPasswordRequired = "Password is required"
)

// ValidateText trims raw and checks the length bounds, returning the text to store.
func ValidateText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", validationError("create", MsgTextRequired)
	}
	if !utf8.ValidString(text) {
		return "", validationError("create", "Note text must be valid UTF-8")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", validationError("create", MsgTextTooLong)
	}
	return text, nil
}

// ValidatePassword rejects an absent password before any lookup happens.
func ValidatePassword(op, candidate string) error {
	if candidate == "" {
		return validationError(op, MsgPasswordRequired)
	}
	return nil
}
