package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ladtc/ladtc/internal/membership"
)

// DueLister lists memberships due for a renewal reminder.
type DueLister interface {
	DueForReminder(ctx context.Context, now time.Time, windowDays int) ([]membership.Membership, error)
}

// RenewalsCLI prints renewal diagnostics.
type RenewalsCLI struct {
	source DueLister
	now    func() time.Time
}

// NewRenewalsCLI constructs the helper.
func NewRenewalsCLI(source DueLister) *RenewalsCLI {
	return &RenewalsCLI{source: source, now: time.Now}
}

// DueOptions defines available flags for the renewals due command.
type DueOptions struct {
	WindowDays int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// DueEntry is one line of the renewals due report.
type DueEntry struct {
	MembershipID string    `json:"membership_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RenewalDate  time.Time `json:"renewal_date"`
	DaysLeft     int       `json:"days_left"`
}

// DueCommand lists due reminders and returns the process exit code.
func (c *RenewalsCLI) DueCommand(ctx context.Context, opts DueOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.WindowDays < 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "renewals due: --window must not be negative")
		return 1
	}
	now := c.now()
	due, err := c.source.DueForReminder(ctx, now, opts.WindowDays)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "renewals due: %v\n", err)
		return 1
	}
	entries := make([]DueEntry, 0, len(due))
	for _, m := range due {
		if m.RenewalDate == nil {
			continue
		}
		entries = append(entries, DueEntry{
			MembershipID: m.ID.String(),
			UserID:       m.UserID,
			Name:         m.Holder.Name,
			Email:        m.Holder.Email,
			RenewalDate:  m.RenewalDate.UTC(),
			DaysLeft:     int(m.RenewalDate.Sub(now).Hours() / 24),
		})
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(entries); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "renewals due: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderDueHuman(opts.Stdout, entries)
	return 0
}

func renderDueHuman(out io.Writer, entries []DueEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No membership is due for a reminder.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d membership(s) due for a reminder:\n", len(entries))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "USER\tNAME\tEMAIL\tRENEWAL\tDAYS")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.UserID, e.Name, e.Email, e.RenewalDate.Format("2006-01-02"), e.DaysLeft)
	}
	_ = tw.Flush()
}
