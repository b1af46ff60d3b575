// Command bondrisk prices a bond book off a zero curve and reports cash flows, risk
// metrics, yields and stress results.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"

	"github.com/meenmo/bondrisk/cmd/bondrisk/internal/app"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	a := app.New()
	a.SetFlags(flag.CommandLine)
	a.Register(commander)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
