// Package common defines shared sentinel errors used across SnapKeeper
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrNotFound is returned by lookups that miss. It is an explicit
	// result, not a failure: a missing record or blob is a normal outcome.
	ErrNotFound = errors.New("not found")

	// ErrStorage covers blob read/write failures (missing source file,
	// permission denial, disk full, unreachable object store).
	ErrStorage = errors.New("storage error")

	// ErrDetection covers label-analysis failures, including timeouts.
	ErrDetection = errors.New("detection error")

	// ErrPersistence covers metadata store read/write/corruption failures.
	ErrPersistence = errors.New("persistence error")

	// ErrInternal is generic flow-control for unexpected failures.
	ErrInternal = errors.New("internal error")
)
