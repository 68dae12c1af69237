package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
	"github.com/alfredjeanlab/callsheet/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printTicket prints the fields a caller needs on the phone. Empty fields
// are left out.
func printTicket(w io.Writer, t *model.Ticket) {
	fmt.Fprintf(w, "Row:         %d\n", t.Position)
	fmt.Fprintf(w, "Account:     %s\n", t.Account)
	for _, f := range []struct{ label, value string }{
		{"Name:        ", t.Name},
		{"Pinyin:      ", t.Pinyin},
		{"Pass ID:     ", t.PassID},
		{"Phone:       ", t.Phone},
		{"Device:      ", t.Device},
		{"Location:    ", t.Location},
		{"Contact ID:  ", t.ContactID},
		{"Assignee:    ", t.Assignee},
		{"Note:        ", t.Note},
	} {
		if f.value != "" {
			fmt.Fprintf(w, "%s%s\n", f.label, f.value)
		}
	}
}

func printContended(w io.Writer, lost []model.RaceLost) {
	if len(lost) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", ui.RenderMuted(fmt.Sprintf("Lost %d race(s):", len(lost))))
	for _, r := range lost {
		fmt.Fprintf(w, "  %s\n", ui.RenderRaceLost(r))
	}
}

func printClaim(w io.Writer, c *model.Claim) {
	verb := "Claimed"
	if c.Resumed {
		verb = "Resuming"
	}
	fmt.Fprintf(w, "%s %s\n\n", verb, ui.RenderAccent(fmt.Sprintf("row %d", c.Ticket.Position)))
	printTicket(w, c.Ticket)
	if len(c.Contended) > 0 {
		fmt.Fprintln(w)
		printContended(w, c.Contended)
	}
}

func printNoTickets(w io.Writer, lost []model.RaceLost) {
	fmt.Fprintln(w, "No tickets available.")
	printContended(w, lost)
}

// printTable prints rows of tbl with their positions. cols selects columns
// (all when empty); limit caps the data rows (all when <= 0).
func printTable(w io.Writer, tbl *model.Table, cols []int, limit int) {
	if tbl.Len() == 0 {
		fmt.Fprintln(w, "Sheet is empty.")
		return
	}
	if len(cols) == 0 {
		width := len(tbl.Header())
		for _, r := range tbl.Rows {
			width = max(width, len(r))
		}
		for c := range width {
			cols = append(cols, c)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	head := []string{"#"}
	for _, c := range cols {
		name := sheet.ColumnName(c)
		if h := tbl.Cell(0, c); h != "" {
			name += " " + h
		}
		head = append(head, name)
	}
	fmt.Fprintln(tw, strings.Join(head, "\t"))

	cellMax := cellWidth(len(cols))
	shown := 0
	for pos := 1; pos < tbl.Len(); pos++ {
		if limit > 0 && shown == limit {
			break
		}
		line := []string{fmt.Sprint(pos)}
		for _, c := range cols {
			line = append(line, truncate(tbl.Cell(pos, c), cellMax))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
		shown++
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d rows (%d total)\n", shown, tbl.Len()-1)
}

// terminalWidth is replaced in tests so output does not depend on the
// terminal running them.
var terminalWidth = ui.Width

// cellWidth splits the terminal width across ncols columns. Piped output
// gets a fixed 24 so scripts see stable widths.
func cellWidth(ncols int) int {
	w := terminalWidth(0)
	if w == 0 || ncols == 0 {
		return 24
	}
	return min(max((w-6)/ncols-2, 8), 40)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printStats(w io.Writer, st *model.Stats) {
	fmt.Fprintf(w, "Rows:         %d\n", st.Rows)
	fmt.Fprintf(w, "Processed:    %d\n", st.Processed)
	fmt.Fprintf(w, "Passed:       %d\n", st.Passed)
	fmt.Fprintf(w, "Pending:      %d\n", st.Pending)
	fmt.Fprintf(w, "In progress:  %d\n", st.InProgress)
	fmt.Fprintf(w, "Unassigned:   %d\n", st.Unassigned)
	if st.Excluded > 0 {
		fmt.Fprintf(w, "Excluded:     %d\n", st.Excluded)
	}
	if st.Malformed > 0 {
		fmt.Fprintf(w, "Malformed:    %s\n", ui.RenderWarn(fmt.Sprint(st.Malformed)))
	}
	if len(st.ByAssignee) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tCLAIMED\tPROCESSED\tPASSED")
	for _, a := range st.ByAssignee {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", a.Assignee, a.Claimed, a.Processed, a.Passed)
	}
	tw.Flush()
}

func printRoster(w io.Writer, entries []presence.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No callers seen.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tHOLDING\tCLAIMS\tSUBMITTED\tPASSED\tRACES LOST\tLAST SEEN")
	for _, e := range entries {
		holding := "-"
		if e.Holding > 0 {
			holding = fmt.Sprint(e.Holding)
		}
		seen := formatAgo(time.Duration(e.IdleSecs * float64(time.Second)))
		if e.Idle {
			seen = ui.RenderMuted(seen + " (idle)")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			e.Caller, holding, e.Claims, e.Submitted, e.Passed, e.RacesLost, seen)
	}
	tw.Flush()
}

func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm ago", int(d.Hours()), int(d.Minutes())%60)
}

func printSheets(w io.Writer, sheets []model.SheetInfo) {
	if len(sheets) == 0 {
		fmt.Fprintln(w, "No sheets.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE")
	for _, s := range sheets {
		fmt.Fprintf(tw, "%s\t%s\n", s.ID, s.Title)
	}
	tw.Flush()
}

// describeEvent renders the kind-specific part of a journal line.
func describeEvent(e *model.Event) string {
	switch e.Kind {
	case model.EventSubmitted:
		return ui.RenderOutcome(e.Outcome)
	case model.EventRaceLost:
		return ui.RenderRaceLost(model.RaceLost{Position: e.Position, Winner: e.Winner, ReadErr: e.Detail})
	case model.EventWriteFail:
		return ui.RenderWarn(e.Detail)
	}
	return e.Detail
}

func printEventLine(w io.Writer, e *model.Event) {
	fmt.Fprintf(w, "%s  %-12s %-12s row %-5d %s\n",
		e.CreatedAt.Local().Format("15:04:05"), e.Kind, e.Actor, e.Position, describeEvent(e))
}

func printJournal(w io.Writer, evs []*model.Event) {
	if len(evs) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, e := range evs {
		printEventLine(w, e)
	}
}
