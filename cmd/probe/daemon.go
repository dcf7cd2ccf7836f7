package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/probelabs/probe/internal/daemon"
)

func daemonCommand() *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "run the LSP enrichment daemon in the foreground",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "project root the daemon serves"},
		},
		Action: runDaemon,
	}
}

func runDaemon(c *cli.Context) error {
	root := c.String("root")
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return wrapExit(err)
		}
	}

	cfg, err := loadConfig(c, root)
	if err != nil {
		return wrapExit(err)
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return wrapExit(err)
	}

	if err := d.Start(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return wrapExit(fmt.Errorf("daemon already running for %s (socket %s)", root, cfg.Daemon.SocketPath))
		}
		return wrapExit(err)
	}

	fmt.Printf("LSP daemon started for %s\n", root)
	fmt.Printf("socket: %s\n", cfg.Daemon.SocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.Shutdown(ctx); err != nil {
		return wrapExit(err)
	}
	fmt.Println("daemon stopped")
	return nil
}
