// Package cli implements the interactive directory client: a small REPL
// over the auth, sync, and directory services, with an online-status watcher
// that doubles as the connectivity resync trigger.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/machly/dirsync/internal/client/client"
	"github.com/machly/dirsync/internal/client/config"
	"github.com/machly/dirsync/internal/client/services"
	"github.com/machly/dirsync/internal/client/vault"
	"github.com/machly/dirsync/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

type App struct {
	config    *config.Config
	auth      services.AuthService
	sync      services.SyncService
	directory services.DirectoryService
	log       logging.Logger
	reader    *bufio.Reader
	out       io.Writer

	// mu guards mode and userEmail: both are written by the watcher
	// goroutine and read by the REPL goroutine.
	mu        sync.Mutex
	mode      Mode
	userEmail string
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {

	repos, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	v := vault.New(repos.Metadata)

	deviceID, err := v.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	api := client.NewDirectoryClient(c.ServerBaseURL, deviceID, c.RequestTimeout)
	if token, err := v.Token(ctx); err == nil && token != "" {
		api.SetToken(token)
	}

	app := &App{
		config:    c,
		auth:      services.NewAuthService(api, repos.DB, v, log),
		sync:      services.NewSyncService(api, repos.DB, v, log),
		directory: services.NewDirectoryService(repos.DB, v),
		log:       log,
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}

	// Resume a persisted session when the token is still valid; an expired
	// token is treated as logged out.
	if ok, err := app.auth.Resume(ctx); err == nil && ok {
		if email, err := v.SessionEmail(ctx); err == nil {
			app.userEmail = email
		}
	}

	return app, nil
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	if a.mode == mode {
		a.mu.Unlock()
		return
	}
	a.mode = mode
	loggedIn := a.userEmail != ""
	a.mu.Unlock()

	a.log.Info(ctx, "mode changed", "mode", mode)

	// Connectivity regained: resync. The sync service's single-flight guard
	// makes a racing manual trigger join this pass.
	if mode == ModeOnline && loggedIn {
		go a.runSync(context.Background())
	}
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setUserEmail(email string) {
	a.mu.Lock()
	a.userEmail = email
	a.mu.Unlock()
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userEmail != ""
}

func (a *App) Run(ctx context.Context) {
	defer a.auth.Close(ctx)
	a.Root(ctx)
}

// StartOnlineStatusWatcher probes the server on an interval and flips the
// app between online and offline modes.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.auth.Ping(pctx)
			cancel()

			if err != nil {
				if a.currentMode() == ModeOnline {
					a.setMode(ctx, ModeOffline)
				}
			} else {
				if a.currentMode() != ModeOnline {
					a.setMode(ctx, ModeOnline)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
