package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldrec/internal/client/app"
	"github.com/dmitrijs2005/fieldrec/internal/client/config"
	"github.com/dmitrijs2005/fieldrec/internal/flagx"
)

func main() {
	cfg := config.LoadConfig()
	cmd, args := flagx.Command(os.Args[1:], config.ValueFlags)

	// Only watch is interruptible; a send batch always runs to the end.
	ctx := context.Background()
	if cmd == "watch" {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	} else {
		signal.Ignore(os.Interrupt)
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = a.Run(ctx, cmd, args)
	if cerr := a.Close(); cerr != nil {
		log.Printf("close: %v", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, app.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
