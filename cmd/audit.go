package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"volunteer-hub/services"
)

// newAuditCmd reports filledCount drift for the given events, or for every
// event when none are named. It only reads.
func newAuditCmd(ledger *services.SignupLedger, events *services.EventService) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "audit [eventId...]",
		Short: "Compare task filledCount with signup documents",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()

			eventIDs := args
			if len(eventIDs) == 0 {
				all, err := events.ListEvents(ctx)
				if err != nil {
					return err
				}
				for _, ev := range all {
					eventIDs = append(eventIDs, ev.ID)
				}
			}

			var report []services.TaskAudit
			for _, id := range eventIDs {
				audits, err := ledger.AuditEvent(ctx, id)
				if err != nil {
					return fmt.Errorf("audit event %s: %w", id, err)
				}
				report = append(report, audits...)
			}

			if asJSON {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			writeAudit(c.OutOrStdout(), report)
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return c
}

func writeAudit(w io.Writer, report []services.TaskAudit) {
	drifted := 0
	for _, a := range report {
		mark := "ok"
		if a.Drift != 0 {
			mark = "DRIFT"
			drifted++
		}
		fmt.Fprintf(w, "%-5s event=%s task=%s filled=%d signups=%d slots=%d %q\n",
			mark, a.EventID, a.TaskID, a.FilledCount, a.Signups, a.Slots, a.Title)
	}
	fmt.Fprintf(w, "%d tasks audited, %d drifted\n", len(report), drifted)
}
