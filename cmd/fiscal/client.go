// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/setefiscal/setefiscal/cmd/fiscal/cli"
	"github.com/setefiscal/setefiscal/lib/clock"
	"github.com/setefiscal/setefiscal/lib/fiscal"
	"github.com/setefiscal/setefiscal/lib/localcache"
	"github.com/setefiscal/setefiscal/lib/session"
	"github.com/setefiscal/setefiscal/lib/sharetoken"
)

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:    "client",
		Summary: "Act as a client holding a share link",
		Subcommands: []*cli.Command{
			clientOpenCommand(),
		},
	}
}

func clientOpenCommand() *cli.Command {
	var api apiFlags
	var cacheDir, clientName, clientCNPJ, eventsFile string
	return &cli.Command{
		Name:    "open",
		Summary: "Open a share link and show the calendar",
		Usage:   "fiscal client open <share-url> [flags]",
		Description: "Open validates the share link's token, loads the calendar, and prints\n" +
			"it. With an edit-scoped token, the --client-name, --cnpj, and\n" +
			"--events-file flags apply changes and save them before exiting.\n\n" +
			"When the server is unreachable, a previously confirmed snapshot is\n" +
			"shown instead, clearly labeled as unconfirmed.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("open", pflag.ContinueOnError)
			api.register(flags)
			flags.StringVar(&cacheDir, "cache-dir", "", "snapshot cache directory (default: the user cache dir)")
			flags.StringVar(&clientName, "client-name", "", "update the client display name (edit scope)")
			flags.StringVar(&clientCNPJ, "cnpj", "", "update the client tax ID (edit scope)")
			flags.StringVar(&eventsFile, "events-file", "", "JSON file with the replacement event set (edit scope)")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "View a shared calendar",
				Command:     `fiscal client open "https://fiscal.example.com/cliente/padaria?calendar=sete-abc&token=$SECRET"`,
			},
			{
				Description: "Correct the company name over an edit link",
				Command:     `fiscal client open "$SHARE_URL" --client-name "Padaria do João ME"`,
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one share URL")
			}
			link, err := sharetoken.ParseShareLink(args[0])
			if err != nil {
				return err
			}
			return openClientSession(api, link, cacheDir, clientName, clientCNPJ, eventsFile)
		},
	}
}

func openClientSession(api apiFlags, link *sharetoken.ShareLink, cacheDir, clientName, clientCNPJ, eventsFile string) error {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cache, err := openSnapshotCache(cacheDir, logger)
	if err != nil {
		return err
	}

	controller := session.New(session.Config{
		Backend: api.anonClient(),
		Cache:   cache,
		Clock:   clock.Real(),
		Logger:  logger,
	})
	if err := controller.Open(ctx, session.Params{
		Secret:     link.Secret,
		CalendarID: link.CalendarID,
		ClientID:   link.ClientID,
	}); err != nil {
		return err
	}

	if controller.State() == session.StateDenied {
		fmt.Fprintln(os.Stderr, warnStyle.Render(controller.DeniedReason()))
		return fmt.Errorf("access denied")
	}

	if clientName != "" || clientCNPJ != "" {
		current := controller.Data()
		info := fiscal.ClientInfo{
			Name:  current.Calendar.ClientName,
			TaxID: current.Calendar.ClientTaxID,
		}
		if clientName != "" {
			info.Name = clientName
		}
		if clientCNPJ != "" {
			info.TaxID = clientCNPJ
		}
		if err := controller.SetClientInfo(info); err != nil {
			return err
		}
	}
	if eventsFile != "" {
		events, err := readEventsFile(eventsFile, link.CalendarID)
		if err != nil {
			return err
		}
		if err := controller.SetEvents(events); err != nil {
			return err
		}
	}

	if err := controller.Flush(ctx); err != nil {
		return err
	}

	data := controller.Data()
	if controller.Stale() {
		fmt.Fprintln(os.Stderr, warnStyle.Render("server unreachable — showing the last confirmed snapshot"))
	}
	renderCalendar(os.Stdout, data)
	fmt.Println(faintStyle.Render(fmt.Sprintf("scope: %s", controller.Scope())))
	if saved := controller.LastSaved(); !saved.IsZero() {
		fmt.Println(faintStyle.Render("saved at " + saved.Local().Format("15:04:05")))
	}
	return nil
}

func openSnapshotCache(dir string, logger *slog.Logger) (*localcache.Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			// No cache dir means no stale fallback, not a failure.
			logger.Warn("snapshot cache disabled", "error", err)
			return nil, nil
		}
		dir = filepath.Join(base, "setefiscal")
	}
	return localcache.New(dir, logger)
}

// readEventsFile loads a replacement event set. Events missing an ID or
// calendar ID get them filled in: the file is allowed to describe new
// events by content alone.
func readEventsFile(path, calendarID string) ([]fiscal.Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []fiscal.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = fiscal.NewEventID()
		}
		if events[i].CalendarID == "" {
			events[i].CalendarID = calendarID
		}
	}
	return events, nil
}
