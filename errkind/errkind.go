// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errkind classifies domain errors into the kinds spec.md §7
// maps to HTTP statuses at the (out-of-scope) boundary. Domain
// packages keep their own sentinel errors; this package only knows how
// to recognize them.
package errkind

import "errors"

// Kind is a coarse classification of a domain error.
type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindDuplicate      Kind = "DUPLICATE"
	KindValidation     Kind = "VALIDATION"
	KindBusinessRule   Kind = "BUSINESS_RULE"
	KindTenantIsolation Kind = "TENANT_ISOLATION"
	KindTransientStore Kind = "TRANSIENT_STORE"
	KindInternal       Kind = "INTERNAL"
)

// Classified is implemented by sentinel errors that know their own
// kind, so Classify does not need an ever-growing switch over every
// package's sentinels.
type Classified interface {
	error
	ErrKind() Kind
}

// Classify walks err's wrap chain looking for a Classified error and
// returns its kind, defaulting to KindInternal for anything else.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var c Classified
	if errors.As(err, &c) {
		return c.ErrKind()
	}
	return KindInternal
}

// New returns a sentinel error of the given kind with message msg.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string  { return e.msg }
func (e *kindError) ErrKind() Kind  { return e.kind }
