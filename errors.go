// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way spec.md §7 does: by cause, not by Go
// type. Callers read it with KindOf (which uses errors.As) and compare the
// result against the Kinds below, rather than switching on concrete types.
type Kind int

const (
	// InputStructural: a site has zero covering paths, prev_pos > cur_pos,
	// or an allele_mask references an allele absent from the site.
	InputStructural Kind = iota
	// NumericCollapse: a column normalization divisor is zero or non-finite.
	NumericCollapse
	// UsageError: CLI, file-open, or missing-mandatory-argument error.
	UsageError
	// IOError: reading VCF/FASTA/reads, or writing VCF, failed.
	IOError
)

func (k Kind) String() string {
	switch k {
	case InputStructural:
		return "input structural error"
	case NumericCollapse:
		return "numeric collapse"
	case UsageError:
		return "usage error"
	case IOError:
		return "I/O error"
	default:
		return "unknown error kind"
	}
}

// Error wraps an underlying error with a Kind, so callers can distinguish
// "this chromosome's input is malformed" from "the disk is full" without
// parsing messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err, or -1 if err is nil or wasn't produced by
// this package. Use it instead of errors.Is when the thing being compared is
// a classification, not a fixed sentinel.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return -1
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}
