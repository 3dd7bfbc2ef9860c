package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/cmd/migrate"
	"github.com/chirino/askbox/internal/cmd/serve"
	"github.com/chirino/askbox/internal/cmd/token"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "askbox",
		Usage: "Anonymous question box for registered members",
		Commands: []*cli.Command{
			serve.Command(),
			migrate.Command(),
			token.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
