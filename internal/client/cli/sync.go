package cli

import (
	"context"
	"fmt"
)

// runSync triggers a sync pass and prints the outcome. Called from the sync
// command, after a successful login, and when connectivity comes back; all
// of these funnel into the same single-flight pass.
func (a *App) runSync(ctx context.Context) {
	report, err := a.sync.Run(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Sync failed: %s\n", err.Error())
		return
	}

	fmt.Fprintf(a.out, "Synced %d role(s), %d user(s)\n", report.Roles, report.Users)
	for _, s := range report.Skipped {
		fmt.Fprintf(a.out, "Skipped %s: %s\n", s.Email, s.Reason)
	}
}
