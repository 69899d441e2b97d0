package model

import "errors"

var (
	// ErrInvalidInput rejects a submission before any resource is used.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedLanguage means no adapter matches the language token.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrStaging means the source could not be written to the artifact store.
	ErrStaging = errors.New("staging failed")
)
