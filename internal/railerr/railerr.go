// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package railerr defines the error taxonomy shared by every railcore
// service: a small set of sentinel causes, wrapped in place with
// pingcap/errors so call sites keep a stack trace, plus the HTTP status
// each cause maps to.
package railerr

import (
	"context"
	"net/http"

	"github.com/pingcap/errors"
)

// Kind is one of the taxonomy's sentinel causes. Use errors.Cause(err) to
// recover it from a wrapped error.
type Kind struct {
	name   string
	status int
}

func (k *Kind) Error() string { return k.name }

// Status returns the HTTP status the kind maps to.
func (k *Kind) Status() int { return k.status }

var (
	// NotFound: a requested entity or baseline does not exist.
	NotFound = &Kind{"not found", http.StatusNotFound}
	// Ambiguous: more than one match where exactly one was required.
	Ambiguous = &Kind{"ambiguous match", http.StatusConflict}
	// BadRequest: malformed caller input.
	BadRequest = &Kind{"bad request", http.StatusBadRequest}
	// HeadersMissing: a required header/field was absent from the request.
	HeadersMissing = &Kind{"required headers missing", http.StatusBadRequest}
	// InconsistentStore: an invariant was violated by stored data.
	InconsistentStore = &Kind{"inconsistent store", http.StatusInternalServerError}
	// Conflict: caller attempted to overwrite an already-set value with a
	// different one (e.g. AttachTrustId on a train with a different id).
	Conflict = &Kind{"conflict", http.StatusConflict}
	// RemoteUnavailable: a downstream service could not be reached.
	RemoteUnavailable = &Kind{"remote unavailable", http.StatusBadGateway}
	// RemoteError: a downstream service returned an error.
	RemoteError = &Kind{"remote error", http.StatusBadGateway}
	// Transient: deadline/timeout/serialization conflict; retry is safe.
	Transient = &Kind{"transient", http.StatusServiceUnavailable}
)

// New wraps kind as the cause of a new error carrying msg.
func New(kind *Kind, msg string) error {
	return errors.Annotate(kind, msg)
}

// Newf is New with formatting.
func Newf(kind *Kind, format string, args ...interface{}) error {
	return errors.Annotatef(kind, format, args...)
}

// Is reports whether err's cause is kind.
func Is(err error, kind *Kind) bool {
	if err == nil {
		return false
	}
	return errors.Cause(err) == kind
}

// Status maps err to an HTTP status code via its cause, defaulting to 500
// for errors not drawn from this taxonomy.
func Status(err error) int {
	switch errors.Cause(err) {
	case NotFound:
		return NotFound.status
	case Ambiguous:
		return Ambiguous.status
	case BadRequest:
		return BadRequest.status
	case HeadersMissing:
		return HeadersMissing.status
	case InconsistentStore:
		return InconsistentStore.status
	case Conflict:
		return Conflict.status
	case RemoteUnavailable:
		return RemoteUnavailable.status
	case RemoteError:
		return RemoteError.status
	case Transient:
		return Transient.status
	case context.DeadlineExceeded, context.Canceled:
		// A request that outlived its deadline rolled back cleanly; the
		// caller may retry.
		return Transient.status
	default:
		return http.StatusInternalServerError
	}
}
