// Command lifetimes runs reference-lifetime scenarios and manages persisted
// accessor values.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/lifetimes/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
