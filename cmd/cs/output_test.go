package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
	"github.com/alfredjeanlab/callsheet/internal/ui"
)

func init() {
	ui.ForceNoColor()
	terminalWidth = func(int) int { return 0 }
}

func TestCellWidth(t *testing.T) {
	orig := terminalWidth
	t.Cleanup(func() { terminalWidth = orig })

	for _, tc := range []struct {
		width, ncols, want int
	}{
		{0, 3, 24},
		{120, 0, 24},
		{120, 3, 36},
		{80, 20, 8},
		{400, 2, 40},
	} {
		terminalWidth = func(int) int { return tc.width }
		if got := cellWidth(tc.ncols); got != tc.want {
			t.Errorf("cellWidth(%d) at width %d = %d, want %d", tc.ncols, tc.width, got, tc.want)
		}
	}
}

func TestPrintClaim(t *testing.T) {
	var buf bytes.Buffer
	printClaim(&buf, &model.Claim{
		User:    "Caller_01",
		Ticket:  &model.Ticket{Position: 4, Account: "acct-4", Phone: "13800000000"},
		Resumed: true,
		Contended: []model.RaceLost{
			{Position: 2, Winner: "Caller_02"},
		},
	})
	out := buf.String()
	for _, want := range []string{"Resuming row 4", "Account:     acct-4", "Phone:       13800000000", "Lost 1 race(s):", "row 2 taken by Caller_02"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Device:") {
		t.Errorf("empty fields should be omitted:\n%s", out)
	}
}

func TestPrintTable_Truncates(t *testing.T) {
	var buf bytes.Buffer
	tbl := model.NewTable([][]string{
		{"account", "note"},
		{"a1", strings.Repeat("长", 40)},
	})
	printTable(&buf, tbl, nil, 0)
	out := buf.String()
	if !strings.Contains(out, strings.Repeat("长", 23)+"…") {
		t.Fatalf("long cell not truncated:\n%s", out)
	}
	if !strings.Contains(out, "1 rows (1 total)") {
		t.Fatalf("footer:\n%s", out)
	}

	buf.Reset()
	printTable(&buf, model.NewTable(nil), nil, 0)
	if buf.String() != "Sheet is empty.\n" {
		t.Fatalf("empty table = %q", buf.String())
	}
}

func TestPrintRoster(t *testing.T) {
	var buf bytes.Buffer
	printRoster(&buf, []presence.Entry{
		{Caller: "Caller_01", Holding: 7, Claims: 3, Submitted: 2, Passed: 1, IdleSecs: 30},
		{Caller: "Caller_02", Claims: 1, RacesLost: 2, IdleSecs: 3900, Idle: true},
	})
	out := buf.String()
	for _, want := range []string{"Caller_01", "just now", "1h05m ago (idle)"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	for _, tc := range []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{2*time.Hour + 3*time.Minute, "2h03m ago"},
	} {
		if got := formatAgo(tc.d); got != tc.want {
			t.Errorf("formatAgo(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	for _, tc := range []struct {
		ev   model.Event
		want string
	}{
		{model.Event{Kind: model.EventSubmitted, Outcome: model.OutcomeFail}, "FAIL"},
		{model.Event{Kind: model.EventRaceLost, Position: 3, Winner: "Caller_09"}, "row 3 taken by Caller_09"},
		{model.Event{Kind: model.EventRaceLost, Position: 3, Detail: "timeout"}, "row 3 verify failed: timeout"},
		{model.Event{Kind: model.EventWriteFail, Detail: "sheet write Q3: quota"}, "sheet write Q3: quota"},
		{model.Event{Kind: model.EventClaimed}, ""},
	} {
		if got := describeEvent(&tc.ev); got != tc.want {
			t.Errorf("describeEvent(%s) = %q, want %q", tc.ev.Kind, got, tc.want)
		}
	}
}
