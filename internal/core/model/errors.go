// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the data structures shared by every stage of the
// ingestion pipeline. This file defines the typed error used across the
// repository.
//
// Every failure that crosses a component boundary is reported as an *Error
// carrying a Kind. The orchestrator never inspects error strings; it asks
// IsKind (or errors.As) which category a failure belongs to.
//
// Kinds:
//   - KindInvalidReference: a folder or file link that cannot be parsed.
//   - KindAccess: the remote listing or download was not reachable or not public.
//   - KindDecode: a video or audio stream cannot be opened or sampled.
//   - KindNoImages: a frame directory holds no eligible images.
//   - KindNotFound: a frame directory (or other local input) does not exist.
//   - KindService: any remote inference, embedding or index call failed.
package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindInvalidReference ErrorKind = "invalid_reference"
	KindAccess           ErrorKind = "access"
	KindDecode           ErrorKind = "decode"
	KindNoImages         ErrorKind = "no_images"
	KindNotFound         ErrorKind = "not_found"
	KindService          ErrorKind = "service"
)

// Error is the typed error returned by pipeline components.
type Error struct {
	Kind ErrorKind // The category of the failure.
	Op   string    // The operation that failed, e.g. "drive.Download".
	Err  error     // The underlying cause, may be nil.
}

// Error renders the error as "<op>: <kind>: <cause>".
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// E is the constructor for *Error.
//
// Inputs:
//   - kind: The category of the failure.
//   - op: The operation that failed.
//   - err: The cause. A plain string message can be passed with errors.New.
//
// Outputs:
//   - error: An *Error wrapping err.
func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef is a shortcut for E with a formatted cause.
func Ef(kind ErrorKind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
