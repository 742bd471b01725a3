package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/machly/dirsync/internal/client/cli"
	"github.com/machly/dirsync/internal/client/config"
	"github.com/machly/dirsync/internal/logging"
)

func main() {

	ctx := context.Background()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
