package service

import "errors"

// Domain failure taxonomy. All recoverable: the caller shows a message and
// lets the installer retry.
var (
	ErrEvidenceMissing        = errors.New("evidence missing")
	ErrInvalidArea            = errors.New("invalid installed area")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrUnknownPauseReason     = errors.New("unknown pause reason")
	ErrConcurrentModification = errors.New("concurrent modification")
)
