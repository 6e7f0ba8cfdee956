package models

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. Handlers and callers branch on the
// kind; human-readable text belongs to the presentation layer.
type Kind string

const (
	// KindNotFound indicates a descriptor, queue, or progress file is absent.
	KindNotFound Kind = "not_found"
	// KindAlreadyComplete indicates a duplicate download attempt for a
	// record that already finished.
	KindAlreadyComplete Kind = "already_complete"
	// KindTimeout indicates a network call exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindConnection indicates the remote endpoint was unreachable.
	KindConnection Kind = "connection_error"
	// KindDecode indicates a malformed response body.
	KindDecode Kind = "decode_error"
	// KindUnauthorized indicates the catalog rejected the request signature.
	KindUnauthorized Kind = "unauthorized"
	// KindProbe indicates the media source could not be inspected or is unusable.
	KindProbe Kind = "probe_failure"
	// KindTranscode indicates the transcoder subprocess failed.
	KindTranscode Kind = "transcode_failure"
	// KindUnknown wraps any other failure.
	KindUnknown Kind = "unknown"
)

// Error is a tagged pipeline error. Op names the failing operation and
// Filename locates the media item when one is known.
type Error struct {
	Kind     Kind
	Op       string
	Filename string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Filename != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Filename)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a tagged error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithFilename returns a copy of the error annotated with the filename.
func (e *Error) WithFilename(filename string) *Error {
	clone := *e
	clone.Filename = filename
	return &clone
}

// KindOf extracts the kind from an error chain. Errors without a tag
// report KindUnknown; nil reports the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
