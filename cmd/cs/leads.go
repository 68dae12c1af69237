package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/callsheet/internal/client"
	"github.com/alfredjeanlab/callsheet/internal/dispatch"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/ui"
)

func requireUser() error {
	if user == "" {
		return errors.New("no caller name: pass --user, set CALLSHEET_USER, or run cs login <name>")
	}
	return nil
}

// targetPosition is the position given on the command line, or the held
// ticket's when args is empty.
func targetPosition(args []string) (int, error) {
	if len(args) > 0 {
		pos, err := strconv.Atoi(args[0])
		if err != nil || pos < 1 {
			return 0, fmt.Errorf("invalid row %q", args[0])
		}
		return pos, nil
	}
	s, err := loadSession()
	if err != nil {
		return 0, err
	}
	if s.Held == nil {
		return 0, errors.New("no ticket held: run cs next, or name the row")
	}
	return s.Held.Ticket.Position, nil
}

// forgetHeld clears the session's held ticket when it is pos.
func forgetHeld(pos int) error {
	return updateSession(func(s *Session) {
		if s.Held != nil && s.Held.Ticket.Position == pos {
			s.Held = nil
		}
	})
}

// explainSubmitError adds what the caller should do next.
func explainSubmitError(pos int, err error) error {
	switch {
	case errors.Is(err, dispatch.ErrInvalidOutcome):
		return fmt.Errorf("%w (use PASS, FAIL or NO_ANSWER)", err)
	case client.Upstream(err):
		return fmt.Errorf("row %d was not fully written; it stays yours and cs next will resume it: %w", pos, err)
	}
	return err
}

var nextCmd = &cobra.Command{
	Use:     "next",
	Short:   "Claim the next lead, or resume the one you hold",
	GroupID: "leads",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		claim, err := csClient.Claim(context.Background(), user)
		if errors.Is(err, dispatch.ErrNoTickets) {
			lost := dispatch.Contended(err)
			if jsonOutput {
				return printJSON(out, map[string]any{"error": "no tickets available", "contended": lost})
			}
			printNoTickets(out, lost)
			return nil
		}
		if err != nil {
			return fmt.Errorf("claiming: %w", err)
		}

		if err := updateSession(func(s *Session) {
			s.User = user
			s.Held = &HeldTicket{Ticket: *claim.Ticket, Resumed: claim.Resumed, ClaimedAt: time.Now().UTC()}
		}); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: saving session: %v\n", err)
		}

		if jsonOutput {
			return printJSON(out, claim)
		}
		printClaim(out, claim)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show",
	Short:   "Show the lead you are working",
	GroupID: "leads",
	Args:    cobra.NoArgs,
	// Reads local state only.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, s.Held)
		}
		if s.Held == nil {
			fmt.Fprintln(out, "No ticket held.")
			return nil
		}
		fmt.Fprintf(out, "%s since %s\n\n",
			ui.RenderAccent(fmt.Sprintf("Holding row %d", s.Held.Ticket.Position)),
			s.Held.ClaimedAt.Local().Format("15:04:05"))
		printTicket(out, &s.Held.Ticket)
		return nil
	},
}

// submitAs submits outcome for the row in args (or the held row).
func submitAs(cmd *cobra.Command, outcome model.Outcome, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	pos, err := targetPosition(args)
	if err != nil {
		return err
	}
	note, _ := cmd.Flags().GetString("note")
	contact, _ := cmd.Flags().GetString("contact")

	err = csClient.Submit(context.Background(), pos, outcome, user, model.Payload{Note: note, ContactID: contact})
	if err != nil {
		return explainSubmitError(pos, err)
	}
	if err := forgetHeld(pos); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: saving session: %v\n", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"position": pos, "outcome": outcome})
	}
	fmt.Fprintf(out, "Row %d: %s\n", pos, ui.RenderOutcome(outcome))
	return nil
}

func outcomeCmd(use, short string, outcome model.Outcome) *cobra.Command {
	c := &cobra.Command{
		Use:     use + " [row]",
		Short:   short,
		GroupID: "leads",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitAs(cmd, outcome, args)
		},
	}
	c.Flags().String("note", "", "free-text note appended after the outcome tag")
	if outcome == model.OutcomePass {
		c.Flags().String("contact", "", "contact id recorded for the lead")
	} else {
		c.Flags().String("contact", "", "ignored unless the outcome is PASS")
		_ = c.Flags().MarkHidden("contact")
	}
	return c
}

var (
	passCmd     = outcomeCmd("pass", "Record a PASS for the lead", model.OutcomePass)
	failCmd     = outcomeCmd("fail", "Record a FAIL (wrong device or refused)", model.OutcomeFail)
	noAnswerCmd = outcomeCmd("noanswer", "Record NO_ANSWER (missed or hung up)", model.OutcomeNoAnswer)
)

var submitCmd = &cobra.Command{
	Use:     "submit <row> <outcome>",
	Short:   "Record any outcome for a row",
	GroupID: "leads",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitAs(cmd, model.ParseOutcome(args[1]), args[:1])
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release [row]",
	Short: "Step away from a lead without recording an outcome",
	Long: `Release checks that you hold the row and logs that you stepped away.
The assignee cell is kept, so your next claim resumes the row.`,
	GroupID: "leads",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		pos, err := targetPosition(args)
		if err != nil {
			return err
		}
		if err := csClient.Release(context.Background(), pos, user); err != nil {
			if errors.Is(err, dispatch.ErrNotHeld) {
				_ = forgetHeld(pos)
			}
			return fmt.Errorf("releasing row %d: %w", pos, err)
		}
		if err := forgetHeld(pos); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: saving session: %v\n", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Released row %d.\n", pos)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:               "login <name>",
	Short:             "Save your caller name and server settings",
	GroupID:           "system",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		err := updateSession(func(s *Session) {
			if s.User != args[0] {
				s.Held = nil
			}
			s.User = args[0]
			if flags.Changed("http-url") {
				s.HTTPURL = httpURL
			}
			if flags.Changed("server") {
				s.Server = serverAddr
			}
			if flags.Changed("token") {
				s.Token = authToken
			}
			if flags.Changed("nats-url") {
				s.NATSURL, _ = flags.GetString("nats-url")
			}
		})
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", args[0])
		return nil
	},
}

func init() {
	submitCmd.Flags().String("note", "", "free-text note appended after the outcome tag")
	submitCmd.Flags().String("contact", "", "contact id (PASS only)")
	loginCmd.Flags().String("nats-url", "", "NATS URL for cs watch")
}
