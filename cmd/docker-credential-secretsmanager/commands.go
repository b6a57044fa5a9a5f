// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"os"

	"github.com/docker/docker-credential-helpers/credentials"
	"github.com/mitchellh/cli"

	"github.com/opentofu/docker-credential-secretsmanager/internal/command"
	"github.com/opentofu/docker-credential-secretsmanager/internal/credstore"
	"github.com/opentofu/docker-credential-secretsmanager/internal/secretsmanager"
)

// commands is the mapping of all the available credential helper commands.
var commands map[string]cli.CommandFactory

func initCommands(ctx context.Context, open func(context.Context) (*credstore.Store, error)) {
	meta := command.Meta{
		CallerContext: ctx,
		Stdin:         stdin,
		Stdout:        stdout,
		OpenStore:     open,
	}

	commands = map[string]cli.CommandFactory{
		credentials.ActionGet: func() (cli.Command, error) {
			return &command.GetCommand{
				Meta: meta,
			}, nil
		},

		credentials.ActionStore: func() (cli.Command, error) {
			return &command.StoreCommand{
				Meta: meta,
			}, nil
		},

		credentials.ActionErase: func() (cli.Command, error) {
			return &command.EraseCommand{
				Meta: meta,
			}, nil
		},

		credentials.ActionList: func() (cli.Command, error) {
			return &command.ListCommand{
				Meta: meta,
			}, nil
		},
	}
}

// openStore builds the store for the secret configured in the environment.
func openStore(ctx context.Context) (*credstore.Store, error) {
	cfg, err := secretsmanager.ConfigFromEnvironment(os.Environ())
	if err != nil {
		return nil, err
	}
	return cfg.Build(ctx)
}
