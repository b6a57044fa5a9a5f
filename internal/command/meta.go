// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package command implements the credential helper protocol commands.
//
// Each command reads its input from Meta.Stdin and writes its result to
// Meta.Stdout. A failing command writes a single "error: <message>" line to
// Meta.Stdout instead, and exits with status 1.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode"

	"github.com/docker/docker-credential-helpers/credentials"

	"github.com/opentofu/docker-credential-secretsmanager/internal/credstore"
)

// Meta holds what all of the commands share.
type Meta struct {
	// CallerContext is the context the command runs under. It is cancelled
	// when the process is interrupted.
	CallerContext context.Context

	Stdin  io.Reader
	Stdout io.Writer

	// OpenStore returns the store the commands operate on. Commands call it
	// only once they have validated their input, so configuration problems
	// are reported as the command's error.
	OpenStore func(ctx context.Context) (*credstore.Store, error)
}

// CommandContext returns the context to use for the command's operations.
func (m *Meta) CommandContext() context.Context {
	if m.CallerContext == nil {
		return context.Background()
	}
	return m.CallerContext
}

// showError writes err as the command's only output and returns the exit
// status for a failed command.
func (m *Meta) showError(err error) int {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	log.Printf("[ERROR] %s", msg)
	fmt.Fprintf(m.Stdout, "error: %s\n", msg)
	return 1
}

// readServerURL reads the registry server URL, which is the whole of
// standard input without trailing whitespace.
func (m *Meta) readServerURL() (string, error) {
	raw, err := io.ReadAll(m.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read server URL: %w", err)
	}
	serverURL := strings.TrimRightFunc(string(raw), unicode.IsSpace)
	if serverURL == "" {
		return "", credentials.NewErrCredentialsMissingServerURL()
	}
	return serverURL, nil
}

// writeJSON writes v followed by a newline. The value is encoded completely
// before anything is written, so that an encoding failure leaves stdout
// empty for the error message.
func (m *Meta) writeJSON(v interface{}, indent bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := m.Stdout.Write(buf.Bytes())
	return err
}
