// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"strings"

	"github.com/docker/docker-credential-helpers/credentials"
)

// GetCommand is a Command implementation that prints the credentials stored
// for the server URL read from standard input.
type GetCommand struct {
	Meta
}

func (c *GetCommand) Run(args []string) int {
	serverURL, err := c.readServerURL()
	if err != nil {
		return c.showError(err)
	}

	ctx := c.CommandContext()
	store, err := c.OpenStore(ctx)
	if err != nil {
		return c.showError(err)
	}

	rec, err := store.Get(ctx, serverURL)
	if err != nil {
		return c.showError(err)
	}

	err = c.writeJSON(credentials.Credentials{
		ServerURL: serverURL,
		Username:  rec.Username,
		Secret:    rec.Secret,
	}, false)
	if err != nil {
		return c.showError(err)
	}
	return 0
}

func (c *GetCommand) Help() string {
	helpText := `
Usage: echo <server-url> | docker-credential-secretsmanager get

  Prints the credentials stored for the registry server URL given on
  standard input, as a JSON object with the ServerURL, Username and Secret
  fields.
`
	return strings.TrimSpace(helpText)
}

func (c *GetCommand) Synopsis() string {
	return "Print the credentials for a registry"
}
