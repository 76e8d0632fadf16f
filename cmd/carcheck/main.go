package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferrous-data/condition.report/internal/api"
	"github.com/ferrous-data/condition.report/internal/check"
	"github.com/ferrous-data/condition.report/internal/config"
	"github.com/ferrous-data/condition.report/internal/db"
	"github.com/ferrous-data/condition.report/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the check config file")
	dbFile      = flag.String("db", "", "SQLite run store path (empty disables persistence)")
	logFile     = flag.String("log-file", "carcheck.log", "Run log file, truncated at start of each check")
	renderHTML  = flag.Bool("html", false, "Render an HTML chart page per checked car")
	renderPlot  = flag.Bool("plot", false, "Render a PNG speed plot per checked car")
	listen      = flag.String("listen", ":8080", "HTTP listen address (serve mode)")
	debugRoutes = flag.Bool("debug", false, "Attach tailsql and backup admin routes (serve mode)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Main
func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("carcheck %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	switch flag.Arg(0) {
	case "":
		runCheck()
	case "serve":
		runServe()
	case "migrate":
		if *dbFile == "" {
			log.Fatal("-db is required for migrate")
		}
		db.RunMigrateCommand(flag.Args()[1:], *dbFile)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
		printUsage()
		os.Exit(1)
	}
}

// runCheck decodes the configured captures and writes window summaries.
func runCheck() {
	closeLog := setupRunLog(*logFile)
	defer closeLog()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	opts := check.Options{HTML: *renderHTML, Plot: *renderPlot}
	if *dbFile != "" {
		store, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to run store: %v", err)
		}
		defer store.Close()
		opts.Store = store
	}

	runner, err := check.NewRunner(cfg, opts)
	if err != nil {
		log.Fatalf("Failed to set up check run: %v", err)
	}
	if _, err := runner.Run(); err != nil {
		log.Fatalf("Check run failed: %v", err)
	}
}

// runServe exposes stored runs over HTTP until interrupted.
func runServe() {
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *dbFile == "" {
		log.Fatal("-db is required in serve mode")
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := api.NewServer(database).ServeMux()
	if *debugRoutes {
		database.AttachAdminRoutes(mux)
	}

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("carcheck API listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("Graceful shutdown complete")
}

// setupRunLog truncates the run log file and tees all logging into it.
// The returned func restores stderr-only logging and closes the file.
func setupRunLog(path string) func() {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", path, err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}
}

func printUsage() {
	fmt.Println("carcheck - rail vehicle condition data checker")
	fmt.Println()
	fmt.Println("Usage: carcheck [flags] [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (default)   Merge captures, decode the window and write summaries")
	fmt.Println("  serve       Serve stored runs over HTTP")
	fmt.Println("  migrate     Manage the run store schema (see 'carcheck migrate help')")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
