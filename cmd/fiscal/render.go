// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/setefiscal/setefiscal/lib/fiscal"
)

// Styles for terminal output. ANSI 256-color codes for broad terminal
// compatibility; lipgloss degrades them gracefully when the terminal
// cannot render color.
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	// secretBoxStyle frames the one-time bearer secret so it stands
	// apart from everything else on the screen.
	secretBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// renderCalendar writes the aggregate as a header block plus an event
// table, dates ascending, with a total row.
func renderCalendar(w io.Writer, data *fiscal.CalendarData) {
	fmt.Fprintln(w, headerStyle.Render(data.Calendar.Title))
	if data.Calendar.ClientName != "" {
		client := data.Calendar.ClientName
		if data.Calendar.ClientTaxID != "" {
			client += " — CNPJ " + data.Calendar.ClientTaxID
		}
		fmt.Fprintln(w, client)
	}
	fmt.Fprintln(w, faintStyle.Render(data.Calendar.ID))
	fmt.Fprintln(w)

	if len(data.Events) == 0 {
		fmt.Fprintln(w, faintStyle.Render("no events"))
		return
	}

	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTAX\tTYPE\tVALUE\tNOTE")
	var total fiscal.Money
	for _, event := range data.Events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			event.Date, event.TaxName, event.Type, event.Value.FormatBRL(), event.Title)
		total += event.Value
	}
	fmt.Fprintf(tw, "\t\t\t%s\t\n", total.FormatBRL())
	tw.Flush()
}

// renderSecret prints the one-time bearer secret banner. The secret is
// never retrievable again, so the warning is not decorative.
func renderSecret(w io.Writer, secret, shareLink string) {
	fmt.Fprintln(w, secretBoxStyle.Render(secret))
	fmt.Fprintln(w, warnStyle.Render("This secret is shown once and cannot be recovered. Store it now."))
	if shareLink != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Share link:")
		fmt.Fprintln(w, "  "+shareLink)
	}
}
