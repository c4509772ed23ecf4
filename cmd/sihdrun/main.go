// Command sihdrun loads a device tree from a YAML file and runs it until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdufaud/sihdgo/internal/logging"
	"github.com/mdufaud/sihdgo/internal/runtime"
)

func main() {
	treePath := flag.String("tree", "", "path to a YAML device tree description")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "optional file to additionally log to")
	flag.Parse()

	if *treePath == "" {
		fmt.Fprintln(os.Stderr, "sihdrun: -tree is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := logging.Init(*logLevel, *logFile); err != nil {
		log.Fatalf("sihdrun: init logging: %v", err)
	}

	if err := run(*treePath); err != nil {
		logging.Log.Error("sihdrun exited with error", "error", err)
		os.Exit(1)
	}
}

func run(treePath string) error {
	registry := runtime.DefaultRegistry()
	root, err := runtime.LoadTree(treePath, registry)
	if err != nil {
		return fmt.Errorf("load tree: %w", err)
	}

	sup := runtime.NewSupervisor(root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		logging.Log.Info("sihdrun started", "tree", treePath)
		errCh <- sup.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		logging.Log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			logging.Log.Warn("supervisor did not shut down within the grace period")
		}
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("supervisor: %w", err)
		}
	}

	return nil
}
