// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/setefiscal/setefiscal/cmd/fiscal/cli"
	"github.com/setefiscal/setefiscal/lib/apiclient"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Summary: "Issue and revoke client share tokens",
		Subcommands: []*cli.Command{
			tokenCreateCommand(),
			tokenListCommand(),
			tokenRevokeCommand(),
		},
	}
}

func tokenCreateCommand() *cli.Command {
	var api apiFlags
	var scope, clientID string
	var expiresDays int
	return &cli.Command{
		Name:    "create",
		Summary: "Issue a share token for a calendar",
		Usage:   "fiscal token create <calendar-id> [flags]",
		Description: "Create issues a bearer token granting a client scoped access to one\n" +
			"calendar. The secret is printed once, here, and never again: the\n" +
			"server keeps only a digest.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
			api.register(flags)
			flags.StringVar(&scope, "scope", string(sharetoken.ScopeView), "access scope: view or edit")
			flags.StringVar(&clientID, "client-id", "", "bind the token to one client identity")
			flags.IntVar(&expiresDays, "expires-days", 0, "days until expiry, 0 for never (max 365)")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "An edit link that expires in 30 days",
				Command:     "fiscal token create sete-abc --scope edit --expires-days 30",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one calendar ID")
			}
			parsedScope, err := sharetoken.ParseScope(scope)
			if err != nil {
				return err
			}

			client, err := api.ownerClient()
			if err != nil {
				return err
			}
			resp, err := client.CreateToken(context.Background(), args[0], apiclient.CreateTokenRequest{
				Scope:         parsedScope,
				ClientID:      clientID,
				ExpiresInDays: expiresDays,
			})
			if err != nil {
				return err
			}

			fmt.Printf("token %s (%s)\n", resp.Token.ID, resp.Token.Scope)
			renderSecret(os.Stdout, resp.Secret, resp.ShareLink)
			return nil
		},
	}
}

func tokenListCommand() *cli.Command {
	var api apiFlags
	return &cli.Command{
		Name:    "list",
		Summary: "List a calendar's share tokens",
		Usage:   "fiscal token list <calendar-id> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			api.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one calendar ID")
			}
			client, err := api.ownerClient()
			if err != nil {
				return err
			}
			tokens, err := client.ListTokens(context.Background(), args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCOPE\tCLIENT\tCREATED\tEXPIRES")
			for _, token := range tokens {
				expires := "never"
				if !token.ExpiresAt.IsZero() {
					expires = token.ExpiresAt.Local().Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					token.ID, token.Scope, token.ClientID,
					token.CreatedAt.Local().Format("2006-01-02"), expires)
			}
			return tw.Flush()
		},
	}
}

func tokenRevokeCommand() *cli.Command {
	var api apiFlags
	return &cli.Command{
		Name:    "revoke",
		Summary: "Revoke a share token",
		Usage:   "fiscal token revoke <token-id> [flags]",
		Description: "Revoke deletes the token. Clients holding its secret lose access on\n" +
			"their next request. Revoking an already-revoked token succeeds.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("revoke", pflag.ContinueOnError)
			api.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one token ID")
			}
			client, err := api.ownerClient()
			if err != nil {
				return err
			}
			if err := client.DeleteToken(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("revoked", args[0])
			return nil
		},
	}
}
