// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/mitchellh/cli"

	"github.com/opentofu/docker-credential-secretsmanager/internal/logging"
	"github.com/opentofu/docker-credential-secretsmanager/version"
)

// These are the process's standard streams. Tests replace them.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	defer logging.PanicHandler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[INFO] docker-credential-secretsmanager version: %s", version.String())
	if logging.IsDebugOrHigher() {
		for _, depMod := range version.InterestingDependencies() {
			log.Printf("[DEBUG] using %s %s", depMod.Path, depMod.Version)
		}
	}
	log.Printf("[INFO] Go runtime version: %s", runtime.Version())
	log.Printf("[INFO] CLI args: %#v", os.Args)

	binName := filepath.Base(os.Args[0])
	args := os.Args[1:]

	if len(args) == 0 {
		fmt.Fprintln(stdout, "error: invalid usage")
		return 1
	}

	// In tests, commands may already be set to provide mock commands
	if commands == nil {
		initCommands(ctx, openStore)
	}

	// Docker treats any output from a helper as a response, so an unknown
	// command fails without printing anything, not even usage.
	if _, exists := commands[args[0]]; !exists {
		log.Printf("[ERROR] unknown command %q", args[0])
		return 1
	}

	cliRunner := &cli.CLI{
		Name:       binName,
		Args:       args,
		Commands:   commands,
		HelpWriter: os.Stderr,
	}

	exitCode, err := cliRunner.Run()
	if err != nil {
		fmt.Fprintf(stdout, "error: %s\n", err)
		return 1
	}

	return exitCode
}
