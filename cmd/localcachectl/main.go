// Command localcachectl is the companion CLI for the cache daemon (§6):
// start/stop the daemon process and monitor it live.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const serviceName = "localcachectl"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "control and monitor the localcached daemon",
		Commands: []*cli.Command{
			startCmd(),
			stopCmd(),
			monitorCmd(),
		},
		DefaultCommand: "monitor",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
