package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/cipherdrop/internal/client/cli"
	"github.com/dmitrijs2005/cipherdrop/internal/client/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	root := cli.NewRootCmd(cli.NewApp(cfg, os.Stdin, os.Stdout, os.Stderr))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", cli.UserMessage(err))
		stop()
		os.Exit(1)
	}

}
