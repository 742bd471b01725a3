package cli

import (
	"context"
	"fmt"
	"time"
)

func (a *App) listUsers(ctx context.Context) {
	items, err := a.directory.ListUsers(ctx)
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return
	}

	for _, u := range items {
		fmt.Fprintf(a.out, "%d\t%s\t%s\t%s\n", u.LocalID, u.FullName, u.Email, u.RoleName)
	}
	fmt.Fprintf(a.out, "%d user(s)\n", len(items))
}

func (a *App) listRoles(ctx context.Context) {
	items, err := a.directory.ListRoles(ctx)
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return
	}

	for _, r := range items {
		fmt.Fprintf(a.out, "%d\t%s\t%s\n", r.LocalID, r.Name, r.Description)
	}
	fmt.Fprintf(a.out, "%d role(s)\n", len(items))
}

func (a *App) showUser(ctx context.Context, localID int64) {
	u, err := a.directory.GetUser(ctx, localID)
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return
	}

	fmt.Fprintf(a.out, "Name:  %s\n", u.FullName)
	fmt.Fprintf(a.out, "Email: %s\n", u.Email)
	fmt.Fprintf(a.out, "Role:  %s\n", u.RoleName)
	if u.LastUpdated > 0 {
		fmt.Fprintf(a.out, "Updated: %s\n", time.UnixMilli(u.LastUpdated).Format(time.RFC3339))
	}
}

func (a *App) status(ctx context.Context) {
	last, err := a.directory.LastSync(ctx)
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return
	}
	if last == 0 {
		fmt.Fprintln(a.out, "Never synced")
		return
	}
	fmt.Fprintf(a.out, "Last sync: %s\n", time.UnixMilli(last).Format(time.RFC3339))
}
