// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"strings"
)

// ListCommand is a Command implementation that prints the username stored
// for each registry. Secrets are never printed.
type ListCommand struct {
	Meta
}

func (c *ListCommand) Run(args []string) int {
	ctx := c.CommandContext()
	store, err := c.OpenStore(ctx)
	if err != nil {
		return c.showError(err)
	}

	usernames, err := store.List(ctx)
	if err != nil {
		return c.showError(err)
	}

	if err := c.writeJSON(usernames, true); err != nil {
		return c.showError(err)
	}
	return 0
}

func (c *ListCommand) Help() string {
	helpText := `
Usage: docker-credential-secretsmanager list

  Prints a JSON object mapping each registry server URL to the username
  stored for it.
`
	return strings.TrimSpace(helpText)
}

func (c *ListCommand) Synopsis() string {
	return "List the registries with stored credentials"
}
