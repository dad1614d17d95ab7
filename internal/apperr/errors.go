// Package apperr holds the sentinel errors shared across keyline packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Document and compile errors.
var (
	ErrMalformedTrackData    = errors.New("malformed track data")
	ErrUnsortedKeyframes     = errors.New("unsorted keyframes")
	ErrDanglingEaseReference = errors.New("dangling ease reference")
	ErrEmptySelectorList     = errors.New("empty selector list")
	ErrEaseInUse             = errors.New("ease in use")
	ErrInvalidState          = errors.New("invalid state")
	ErrClosed                = errors.New("timeline closed")
)
