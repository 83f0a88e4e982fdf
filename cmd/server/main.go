package main

import (
	"context"
	"log"

	"github.com/sundayezeilo/tinylink/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	// Blocks until SIGINT/SIGTERM.
	return application.Start(ctx)
}
