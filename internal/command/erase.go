// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"strings"
)

// EraseCommand is a Command implementation that removes the credentials
// stored for the server URL read from standard input.
type EraseCommand struct {
	Meta
}

func (c *EraseCommand) Run(args []string) int {
	serverURL, err := c.readServerURL()
	if err != nil {
		return c.showError(err)
	}

	ctx := c.CommandContext()
	store, err := c.OpenStore(ctx)
	if err != nil {
		return c.showError(err)
	}

	if err := store.Erase(ctx, serverURL); err != nil {
		return c.showError(err)
	}
	return 0
}

func (c *EraseCommand) Help() string {
	helpText := `
Usage: echo <server-url> | docker-credential-secretsmanager erase

  Removes the credentials stored for the registry server URL given on
  standard input. It is an error if there are none.
`
	return strings.TrimSpace(helpText)
}

func (c *EraseCommand) Synopsis() string {
	return "Remove the credentials for a registry"
}
