// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package secretmap

import (
	"errors"
	"fmt"
)

// FormatError is returned when a secret value, or one entry within it, does
// not have the expected structure.
type FormatError struct {
	// Subject is a short description of what failed to decode, like
	// "secret value" or "credential record".
	Subject string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s format", e.Subject)
	}
	return fmt.Sprintf("invalid %s format: %s", e.Subject, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError returns true if the given error is or wraps a [FormatError].
func IsFormatError(err error) bool {
	var target *FormatError
	return errors.As(err, &target)
}
