// Command migrate applies or rolls back the Kegstock schema.
//
//	migrate [-database-url URL] up|down|version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kegstock/kegstock/internal/logging"
	"github.com/kegstock/kegstock/internal/migrate"
	"github.com/kegstock/kegstock/internal/repository"
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		timeout     = flag.Duration("timeout", time.Minute, "Overall timeout")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, *logLevel, "text")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := migrate.Open(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", logging.SanitizeError(err, *databaseURL))
		os.Exit(1)
	}
	defer db.Close()

	m, err := migrate.New(db, repository.Migrations, repository.MigrationsDir, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load migrations:", err)
		os.Exit(1)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate up:", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", n)
	case "down":
		v, err := m.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Println("nothing to roll back")
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate down:", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back version %d\n", v)
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate version:", err)
			os.Exit(1)
		}
		fmt.Println(v)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}
