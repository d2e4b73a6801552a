// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/setefiscal/setefiscal/cmd/fiscal/cli"
	"github.com/setefiscal/setefiscal/lib/fiscal"
)

func calendarCommand() *cli.Command {
	return &cli.Command{
		Name:    "calendar",
		Summary: "Manage fiscal calendars",
		Subcommands: []*cli.Command{
			calendarCreateCommand(),
			calendarListCommand(),
			calendarShowCommand(),
			calendarSaveCommand(),
		},
	}
}

func calendarCreateCommand() *cli.Command {
	var api apiFlags
	var title, clientName, clientCNPJ string
	return &cli.Command{
		Name:    "create",
		Summary: "Create a calendar",
		Usage:   "fiscal calendar create [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
			api.register(flags)
			flags.StringVar(&title, "title", "", "calendar title (default \""+fiscal.DefaultCalendarTitle+"\")")
			flags.StringVar(&clientName, "client", "", "client display name")
			flags.StringVar(&clientCNPJ, "cnpj", "", "client tax ID (CNPJ)")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "Create a calendar for a client",
				Command:     `fiscal calendar create --client "Padaria do João" --cnpj 12.345.678/0001-90`,
			},
		},
		Run: func(args []string) error {
			client, err := api.ownerClient()
			if err != nil {
				return err
			}
			calendar, err := client.CreateCalendar(context.Background(), title, clientName, clientCNPJ)
			if err != nil {
				return err
			}
			fmt.Println(calendar.ID)
			return nil
		},
	}
}

func calendarListCommand() *cli.Command {
	var api apiFlags
	return &cli.Command{
		Name:    "list",
		Summary: "List your calendars",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			api.register(flags)
			return flags
		},
		Run: func(args []string) error {
			client, err := api.ownerClient()
			if err != nil {
				return err
			}
			calendars, err := client.ListCalendars(context.Background())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID\tCLIENT\tTITLE\tUPDATED")
			for _, calendar := range calendars {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					calendar.ID, calendar.ClientName, calendar.Title,
					calendar.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func calendarShowCommand() *cli.Command {
	var api apiFlags
	var asJSON bool
	return &cli.Command{
		Name:    "show",
		Summary: "Show a calendar and its events",
		Usage:   "fiscal calendar show <calendar-id> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			api.register(flags)
			flags.BoolVar(&asJSON, "json", false, "print the aggregate as JSON (editable with 'calendar save')")
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
			data, err := client.GetCalendar(context.Background(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(data)
			}
			renderCalendar(os.Stdout, data)
			return nil
		},
	}
}

func calendarSaveCommand() *cli.Command {
	var api apiFlags
	var file string
	return &cli.Command{
		Name:    "save",
		Summary: "Save a full calendar aggregate from JSON",
		Usage:   "fiscal calendar save [flags]",
		Description: "Save reads a calendar aggregate (as printed by 'calendar show --json'),\n" +
			"and persists it: events present in the input are kept or updated,\n" +
			"events absent from it are deleted.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("save", pflag.ContinueOnError)
			api.register(flags)
			flags.StringVar(&file, "file", "-", "JSON file to read, or - for stdin")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "Round-trip a calendar through an editor",
				Command:     "fiscal calendar show sete-abc --json > cal.json && $EDITOR cal.json && fiscal calendar save --file cal.json",
			},
		},
		Run: func(args []string) error {
			var reader io.Reader = os.Stdin
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				reader = f
			}

			var data fiscal.CalendarData
			if err := json.NewDecoder(reader).Decode(&data); err != nil {
				return fmt.Errorf("decoding aggregate: %w", err)
			}
			if data.Calendar.ID == "" {
				return fmt.Errorf("aggregate has no calendar ID")
			}

			client, err := api.ownerClient()
			if err != nil {
				return err
			}
			if err := client.SaveCalendar(context.Background(), &data); err != nil {
				return err
			}
			fmt.Printf("saved %s (%d events)\n", data.Calendar.ID, len(data.Events))
			return nil
		},
	}
}
