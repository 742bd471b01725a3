package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (a *App) getStatus() string {
	a.mu.Lock()
	email, mode := a.userEmail, a.mode
	a.mu.Unlock()

	s := ""
	if email != "" {
		s = email + " "
	}
	if mode != "" {
		s = s + string(mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) Root(ctx context.Context) {

	fmt.Fprintln(a.out, "Machly directory client (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	if !a.isLoggedIn() {
		a.Login(ctx)
	}

	go func() {
		a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}()

	for {
		fmt.Fprintf(a.out, "dirsync %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(a.out, "Available commands: users, roles, show <id>, sync, status, logout, reset, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: login, exit")
			}

		case "login":
			a.Login(ctx)
		case "users":
			a.listUsers(ctx)
		case "roles":
			a.listRoles(ctx)
		case "show":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: show <local id>")
				continue
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Fprintln(a.out, "Usage: show <local id>")
				continue
			}
			a.showUser(ctx, id)
		case "sync":
			a.runSync(ctx)
		case "status":
			a.status(ctx)
		case "logout":
			a.Logout(ctx)
		case "reset":
			a.reset(ctx)
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}

}
