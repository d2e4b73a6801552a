// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/setefiscal/setefiscal/cmd/fiscal/cli"
	"github.com/setefiscal/setefiscal/lib/version"
)

func main() {
	if err := rootCommand().Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "fiscal:", err)
		os.Exit(1)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "fiscal",
		Summary: "Fiscal calendar management for accounting firms",
		Description: "fiscal manages fiscal-obligation calendars on a fiscald server:\n" +
			"calendars, their tax events, and the share tokens that give\n" +
			"clients scoped access through a link.",
		Subcommands: []*cli.Command{
			calendarCommand(),
			tokenCommand(),
			linkCommand(),
			clientCommand(),
			keygenCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Println("fiscal", version.Full())
			return nil
		},
	}
}
