// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/setefiscal/setefiscal/cmd/fiscal/cli"
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

func linkCommand() *cli.Command {
	var api apiFlags
	var origin, secret, clientID, slug string
	return &cli.Command{
		Name:    "link",
		Summary: "Rebuild a share link from a known secret",
		Usage:   "fiscal link <calendar-id> [flags]",
		Description: "Link reassembles the share URL for a secret you already hold, for\n" +
			"example when the original 'token create' output was lost but the\n" +
			"secret itself was stored. The server cannot help here: it never\n" +
			"keeps the secret.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("link", pflag.ContinueOnError)
			api.register(flags)
			flags.StringVar(&origin, "origin", "", "public origin the link points at, e.g. https://fiscal.example.com")
			flags.StringVar(&secret, "token", "", "the bearer secret")
			flags.StringVar(&clientID, "client-id", "", "client identity the token is bound to, if any")
			flags.StringVar(&slug, "slug", "", "client-name path segment (default: derived from the calendar)")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "Rebuild a link for a stored secret",
				Command:     "fiscal link sete-abc --origin https://fiscal.example.com --token $SECRET",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one calendar ID")
			}
			if origin == "" {
				return fmt.Errorf("--origin is required")
			}
			if secret == "" {
				return fmt.Errorf("--token is required")
			}

			// The slug is cosmetic. Derive it from the calendar when an
			// API key is at hand, otherwise fall back to the generic
			// segment rather than prompting for credentials.
			if slug == "" {
				slug = "cliente"
				if api.resolveKey() != "" {
					client, err := api.ownerClient()
					if err == nil {
						if data, err := client.GetCalendar(context.Background(), args[0]); err == nil {
							slug = fiscal.Slugify(data.Calendar.ClientName)
						}
					}
				}
			}

			fmt.Println(sharetoken.BuildShareLink(origin, slug, args[0], secret, clientID))
			return nil
		},
	}
}
