// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ioerr defines the small closed set of sentinel errors the fiber
// runtime's I/O surfaces return, and the classification helpers call sites
// use instead of type switches.
//
// ErrWouldBlock is re-exported from [code.hybscloud.com/iox] so that
// callers can match it with errors.Is against the iox sentinel; wqueue
// returns it for a writev that would block. ErrEOF and the
// permanent-error wrapper are this module's own additions for the status
// codes spec.md §7 assigns to readv/writev (used by wqueue and ioread).
package ioerr

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates a non-blocking operation could not proceed
// immediately (socket not ready). It is a control flow signal, not a
// failure: callers retry with backoff.
//
// This is an alias for [iox.ErrWouldBlock]; it is the only package in the
// module that imports iox.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrEOF indicates a readv returned 0: the remote end closed its write side.
var ErrEOF = errors.New("ioerr: remote closed (eof)")

// PermanentError wraps a negative, non-EAGAIN return from readv/writev.
// The caller is expected to close the stream; the error is not retried.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("ioerr: %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanent wraps err as a PermanentError for operation op ("readv",
// "writev"). Returns nil if err is nil.
func NewPermanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Op: op, Err: err}
}

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal rather than a
// failure. Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition:
// nil, ErrWouldBlock, or any error iox itself classifies as non-failure.
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// IsEOF reports whether err is ErrEOF (possibly wrapped).
func IsEOF(err error) bool {
	return errors.Is(err, ErrEOF)
}

// IsPermanent reports whether err is a *PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
