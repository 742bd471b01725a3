package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/machly/dirsync/internal/client/client"
	"github.com/machly/dirsync/internal/common"
)

// Login prompts for credentials and authenticates online, falling back to
// the cached credentials when the server is unreachable.
func (a *App) Login(ctx context.Context) {

	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	password, err := GetPassword(a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer common.WipeByteArray(password)

	user, err := a.auth.OnlineLogin(ctx, email, string(password))
	if err == nil {
		fmt.Fprintf(a.out, "Logged in as %s\n", user.FullName)
		a.setUserEmail(user.Email)
		a.setMode(ctx, ModeOnline)
		// Post-login resync: refresh the whole cache in the background.
		go a.runSync(context.Background())
		return
	}

	if !errors.Is(err, client.ErrUnavailable) {
		fmt.Fprintf(a.out, "Login failed: %s\n", err.Error())
		return
	}

	fmt.Fprintln(a.out, "Server unavailable, trying offline login...")
	user, err = a.auth.OfflineLogin(ctx, email, string(password))
	if err != nil {
		fmt.Fprintf(a.out, "Offline login failed: %s\n", err.Error())
		a.setMode(ctx, ModeDisabled)
		return
	}

	fmt.Fprintf(a.out, "Offline mode, welcome back %s\n", user.FullName)
	a.setUserEmail(user.Email)
	a.setMode(ctx, ModeOffline)
}

func (a *App) Logout(ctx context.Context) {
	if err := a.auth.Logout(ctx); err != nil {
		fmt.Fprintf(a.out, "Logout failed: %s\n", err.Error())
		return
	}
	a.setUserEmail("")
	fmt.Fprintln(a.out, "Logged out")
}

// reset wipes the local cache and session. Destructive and explicit: sync
// never deletes anything.
func (a *App) reset(ctx context.Context) {
	answer, err := GetSimpleText(a.reader, "Wipe the local cache and session? (yes/no)", a.out)
	if err != nil || answer != "yes" {
		fmt.Fprintln(a.out, "Cancelled")
		return
	}
	if err := a.auth.Reset(ctx); err != nil {
		fmt.Fprintf(a.out, "Reset failed: %s\n", err.Error())
		return
	}
	a.setUserEmail("")
	fmt.Fprintln(a.out, "Local cache cleared")
}
