package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cipherdrop/internal/server"
	"github.com/dmitrijs2005/cipherdrop/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cipherdrop-server: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cipherdrop-server: %v\n", err)
		os.Exit(1)
	}

}
