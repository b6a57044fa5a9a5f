// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package credstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opentofu/docker-credential-secretsmanager/internal/secretmap"
)

// ErrNotFound is matched by [errors.Is] for any [NotFoundError].
var ErrNotFound = errors.New("credentials not found")

// NotFoundError is returned when an operation targets a server URL that has
// no valid credential record in the secret.
type NotFoundError struct {
	ServerURL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("credentials not found for %s", e.ServerURL)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TransportError wraps a failure to communicate with the secret store.
type TransportError struct {
	// Op is the name of the remote operation that failed.
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConflictError is returned when a write was rejected because the secret
// changed since it was read. The caller may retry the whole operation.
type ConflictError struct {
	SecretID        string
	ExpectedVersion string
	CurrentVersion  string
	Err             error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("secret %s was modified concurrently", e.SecretID)
	if e.ExpectedVersion != "" || e.CurrentVersion != "" {
		msg += fmt.Sprintf(" (read version %q, current version %q)", e.ExpectedVersion, e.CurrentVersion)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is or wraps a [NotFoundError].
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsFormat returns true if the error is or wraps a [secretmap.FormatError].
func IsFormat(err error) bool {
	return secretmap.IsFormatError(err)
}

// IsTransport returns true if the error is or wraps a [TransportError].
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsConflict returns true if the error reports a concurrent modification,
// either through a [ConflictError] or a [LockError].
func IsConflict(err error) bool {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return true
	}
	var lockErr *LockError
	return errors.As(err, &lockErr)
}

// SingleLineErrors is a multierror.ErrorFormatFunc that keeps compound
// errors on one line, since the protocol reports errors as a single line.
func SingleLineErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
