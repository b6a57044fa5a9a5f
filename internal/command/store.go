// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker-credential-helpers/credentials"

	"github.com/opentofu/docker-credential-secretsmanager/internal/secretmap"
)

// StoreCommand is a Command implementation that saves the credentials read
// from standard input, replacing any already stored for the same server.
type StoreCommand struct {
	Meta
}

func (c *StoreCommand) Run(args []string) int {
	creds, err := c.readCredentials()
	if err != nil {
		return c.showError(err)
	}
	if creds.ServerURL == "" {
		return c.showError(credentials.NewErrCredentialsMissingServerURL())
	}

	ctx := c.CommandContext()
	store, err := c.OpenStore(ctx)
	if err != nil {
		return c.showError(err)
	}

	rec := secretmap.CredentialRecord{
		Username: creds.Username,
		Secret:   creds.Secret,
	}
	if err := store.Store(ctx, creds.ServerURL, rec); err != nil {
		return c.showError(err)
	}
	return 0
}

// readCredentials decodes the single JSON object expected on standard input.
// All three fields are required and their names are case-sensitive.
func (c *StoreCommand) readCredentials() (credentials.Credentials, error) {
	raw, err := io.ReadAll(c.Stdin)
	if err != nil {
		return credentials.Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	vals, err := secretmap.DecodeFields("credentials", raw, "ServerURL", "Username", "Secret")
	if err != nil {
		return credentials.Credentials{}, err
	}
	return credentials.Credentials{
		ServerURL: vals[0],
		Username:  vals[1],
		Secret:    vals[2],
	}, nil
}

func (c *StoreCommand) Help() string {
	helpText := `
Usage: echo <credentials> | docker-credential-secretsmanager store

  Saves the credentials given on standard input as a JSON object with the
  ServerURL, Username and Secret fields. Credentials already stored for the
  same server URL are replaced.
`
	return strings.TrimSpace(helpText)
}

func (c *StoreCommand) Synopsis() string {
	return "Save the credentials for a registry"
}
