// Command dbmap maps database servers into a unified schema model.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/dbmap/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
