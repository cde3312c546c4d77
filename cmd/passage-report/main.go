// Command passage-report runs the detection store and its HTTP API, plus the
// periodic passage worker that derives movement events from stored
// detections.
//
// Subcommands:
//
//	passage-report migrate <up|down|status|version|force> [n]
//	passage-report passages <analyse|rebuild|purge> [args]
//
// With no subcommand it serves the API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverbend-data/passage.report/internal/api"
	"github.com/riverbend-data/passage.report/internal/db"
)

var (
	devMode      = flag.Bool("dev", false, "Run in dev mode (migrations read from the working tree)")
	listen       = flag.String("listen", ":8080", "Listen address")
	dbPath       = flag.String("db", "detections.db", "Path to sqlite database")
	modelVersion = flag.String("model", "passage-v1", "Model version recorded on derived passages")
	interval     = flag.Duration("interval", 15*time.Minute, "Passage worker run interval")
	window       = flag.Duration("window", 20*time.Minute, "Passage worker lookback window")
	noWorker     = flag.Bool("no-worker", false, "Disable the periodic passage worker")
)

func main() {
	flag.Parse()
	db.DevMode = *devMode

	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			db.RunMigrateCommand(args[1:], *dbPath)
			return
		case "passages":
			runPassagesCommand(args[1:])
			return
		default:
			log.Fatalf("unknown subcommand %q", args[0])
		}
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	var worker *db.PassageWorker
	if !*noWorker {
		worker = db.NewPassageWorker(database, *modelVersion)
		worker.Interval = *interval
		worker.Window = *window
		worker.Start()
		defer worker.Stop()
	}

	server := api.NewServer(database, *modelVersion)
	mux := server.ServeMux()
	database.ServeDebug(mux, *dbPath)

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func runPassagesCommand(args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: passage-report passages <analyse|rebuild|purge> [args]")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	cli := db.NewPassageCLI(database, *modelVersion, os.Stdout)
	ctx := context.Background()

	switch args[0] {
	case "analyse":
		if _, err := cli.Analyse(ctx); err != nil {
			log.Fatalf("analyse failed: %v", err)
		}
	case "rebuild":
		var start, end time.Time
		if len(args) == 3 {
			if start, err = time.Parse(time.RFC3339, args[1]); err != nil {
				log.Fatalf("invalid start: %v", err)
			}
			if end, err = time.Parse(time.RFC3339, args[2]); err != nil {
				log.Fatalf("invalid end: %v", err)
			}
		} else if len(args) != 1 {
			log.Fatal("Usage: passage-report passages rebuild [<start> <end>]")
		}
		if err := cli.Rebuild(ctx, start, end); err != nil {
			log.Fatalf("rebuild failed: %v", err)
		}
	case "purge":
		if len(args) < 2 {
			log.Fatal("Usage: passage-report passages purge <model_version>")
		}
		if err := cli.Purge(ctx, args[1]); err != nil {
			log.Fatalf("purge failed: %v", err)
		}
	default:
		log.Fatalf("unknown passages action %q", args[0])
	}
}
