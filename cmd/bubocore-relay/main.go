// Command bubocore-relay runs a standalone Relay (§4.H): wide-area fan-out
// of opaque state updates between independent bubocore-server instances.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/zurustar/bubocore/internal/relay"
	"github.com/zurustar/bubocore/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "bubocore-relay:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("bubocore-relay", flag.ContinueOnError)
	listenAddr := fs.String("listen", ":7891", "relay listen address")
	maxInstances := fs.Int("max-instances", 32, "maximum concurrently registered instances")
	msgsPerMinute := fs.Int("msgs-per-minute", 600, "per-instance message rate limit")
	bytesPerMinute := fs.Int64("bytes-per-minute", 10*1024*1024, "per-instance cumulative byte rate limit")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := logger.InitLogger(*logLevel); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.GetLogger()

	srv := relay.New(*maxInstances, *msgsPerMinute, *bytesPerMinute, log)

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", *listenAddr, err)
	}
	log.Info("bubocore-relay: listening", "addr", *listenAddr, "max_instances", *maxInstances)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("bubocore-relay: serve failed", "error", err)
		}
	case sig := <-sigc:
		log.Info("bubocore-relay: shutting down", "signal", sig.String())
	}

	srv.Stop()
	ln.Close()
	return nil
}
