package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"focusflow/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.New().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "focusflow:", err)
		stop()
		os.Exit(1)
	}
}
