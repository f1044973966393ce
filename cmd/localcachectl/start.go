package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/urfave/cli/v2"

	"github.com/adred-codev/localcached/internal/config"
	"github.com/adred-codev/localcached/pkg/client"
)

func startCmd() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "launch the localcached daemon as a detached process",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bin", Value: "localcached", Usage: "path to the localcached binary"},
		},
		Action: func(c *cli.Context) error {
			bin := c.String("bin")
			cmd := exec.Command(bin)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			if err := cmd.Start(); err != nil {
				return fmt.Errorf("localcachectl: failed to start %s: %w", bin, err)
			}
			fmt.Printf("started %s (pid %d)\n", bin, cmd.Process.Pid)
			return nil
		},
	}
}

func stopCmd() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "stop a running localcached daemon by reading its PID file",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(cfg.PidPath)
			if err != nil {
				return fmt.Errorf("localcachectl: reading pid file %s: %w", cfg.PidPath, err)
			}
			var pid int
			if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
				return fmt.Errorf("localcachectl: parsing pid file: %w", err)
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("localcachectl: finding process %d: %w", pid, err)
			}
			if err := proc.Signal(os.Interrupt); err != nil {
				return fmt.Errorf("localcachectl: signaling process %d: %w", pid, err)
			}
			fmt.Printf("stopped localcached (pid %d)\n", pid)
			return nil
		},
	}
}

// connectWithConfig loads the daemon's socket path from the same
// env-derived config the daemon uses and dials it.
func connectWithConfig() (*client.Client, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	return client.Connect(cfg.SocketPath)
}
