// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
)

// This output is shown if a panic happens.
const panicOutput = `
!!!!!!!!!!!!!!!!!!!!!!!!!!! CREDENTIAL HELPER CRASH !!!!!!!!!!!!!!!!!!!!!!!!!!!!

docker-credential-secretsmanager crashed! This is always indicative of a bug
within the credential helper. Please report the crash with the full panic
output below. Your credentials are not included in it.

[1]: https://github.com/opentofu/docker-credential-secretsmanager/issues

!!!!!!!!!!!!!!!!!!!!!!!!!!! CREDENTIAL HELPER CRASH !!!!!!!!!!!!!!!!!!!!!!!!!!!!
`

// PanicHandler is called to recover from an internal panic, and is meant
// to be deferred at the top of main. The crash report goes to stderr so that
// the protocol output on stdout stays clean, and the process exits with
// status 11 rather than the usual 2 so that crashes can be told apart from
// ordinary failures.
func PanicHandler() {
	recovered := recover()
	if recovered == nil {
		return
	}

	fmt.Fprint(os.Stderr, panicOutput)
	fmt.Fprint(os.Stderr, recovered, "\n")

	stack := strings.TrimSpace(string(debug.Stack()))
	fmt.Fprintln(os.Stderr, stack)

	os.Exit(11)
}
