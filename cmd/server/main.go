package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/cookieauth/internal/flagx"
	"github.com/dmitrijs2005/cookieauth/internal/server"
	"github.com/dmitrijs2005/cookieauth/internal/server/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(ctx, app, flagx.CommandFlag("start")); err != nil {
		log.Printf("%v", err)
		_ = app.Close()
		os.Exit(1)
	}

	_ = app.Close()
}

func run(ctx context.Context, app *server.App, command string) error {
	switch command {
	case "start":
		return app.Run(ctx)
	case "migrate":
		return app.Migrate(ctx)
	case "create-user":
		return app.CreateUser(ctx, flagx.EmailFlag())
	default:
		return fmt.Errorf("unknown command %q (want start, migrate or create-user)", command)
	}
}
