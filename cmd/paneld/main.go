// Command paneld serves the dataset catalog over HTTP: browsing, synchronous
// table downloads, export scheduling and artifact retrieval.
//
// Configuration comes from flags and PANELCORE_* environment variables:
//
//	PANELCORE_HTTP_ADDR      listen address (default :8080)
//	PANELCORE_STORE_DRIVER   memory | sqlite | postgres (default memory)
//	PANELCORE_SQLITE_PATH    database file for the sqlite driver
//	PANELCORE_POSTGRES_DSN   connection string for the postgres driver
//	PANELCORE_BLOB_DRIVER    fs | s3 | memory (default fs), see internal/blob
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"panelcore/internal/adapters/web"
	"panelcore/internal/blob"
	"panelcore/internal/catalog"
	"panelcore/internal/core"
	"panelcore/internal/persistence"
	"panelcore/internal/persistence/postgres"
	"panelcore/internal/persistence/sqlite"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stderr))
}

func cli(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("paneld", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "listen address (overrides PANELCORE_HTTP_ADDR)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(stderr, "paneld: ", log.LstdFlags)
	if err := run(ctx, *addr, logger); err != nil {
		logger.Printf("fatal: %v", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, addr string, logger *log.Logger) error {
	if addr == "" {
		addr = os.Getenv("PANELCORE_HTTP_ADDR")
	}
	if addr == "" {
		addr = ":8080"
	}

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	records, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = records.Close() }()
	blobs, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	svc := core.NewService(cat, records, blobs)
	svc.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			logger.Printf("stop export worker: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              addr,
		Handler:           web.NewHandler(svc).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("serving %d datasets on %s", cat.Len(), addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore selects the persistence driver from PANELCORE_STORE_DRIVER.
func openStore(ctx context.Context) (persistence.Store, error) {
	driver := os.Getenv("PANELCORE_STORE_DRIVER")
	switch driver {
	case "", "memory":
		return persistence.NewMemory(), nil
	case "sqlite":
		path := os.Getenv("PANELCORE_SQLITE_PATH")
		if path == "" {
			path = "paneld.db"
		}
		return sqlite.New(path)
	case "postgres":
		dsn := os.Getenv("PANELCORE_POSTGRES_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires PANELCORE_POSTGRES_DSN")
		}
		return postgres.Open(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown store driver %s", driver)
}
