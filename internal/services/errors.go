package services

import (
	"errors"

	apperrors "github.com/SAP-F-2025/exam-session-service/internal/errors"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session has been closed")
	ErrInvalidTransition  = errors.New("operation not allowed in current session state")
	ErrInvalidAnswer      = errors.New("answer does not fit the question")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrResultNotReady     = errors.New("session has not completed yet")
	ErrAudioNotFound      = errors.New("no audio for this scenario")
	ErrUnknownLevel       = errors.New("level or module is not configured")
)

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrAudioNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrResultNotReady)
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrInvalidAnswer) ||
		errors.Is(err, ErrQuestionOutOfRange) ||
		errors.Is(err, ErrUnknownLevel) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}
