package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/trackview/trackview/internal/config"
	"github.com/trackview/trackview/internal/db"
	"github.com/trackview/trackview/internal/server"
	"github.com/trackview/trackview/internal/sync"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	periodicSyncInterval = 15 * time.Minute
	watcherDebounce      = 500 * time.Millisecond
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("trackview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`trackview %s - activity analytics backend

Ingests collector activity exports into SQLite and serves
KPIs, rollups, trends, and usage rankings over a REST API.

Usage:
  trackview [flags]          Start the server (default command)
  trackview serve [flags]    Start the server (explicit)
  trackview export [flags]   Export analytics as CSV
  trackview version          Show version information
  trackview help             Show this help

Server flags:
  -host string         Host to bind to (default "127.0.0.1")
  -port int            Port to listen on (default 8080)
  -spool string        Spool directory to ingest
  -tolerance int       Allowed total drift in seconds (default 0)
  -total-policy string Total mismatch handling (default "recompute")

Export flags:
  -kind string         users or usage (default "users")
  -from string         Range start (YYYY-MM-DD)
  -to string           Range end (YYYY-MM-DD)
  -category string     Usage category (default "productive")
  -username string     Restrict to one user
  -out string          Output file (default stdout)

Environment variables:
  TRACKVIEW_DATA_DIR         Data directory (database, config)
  TRACKVIEW_SPOOL_DIR        Spool directory with collector exports
  TRACKVIEW_TOLERANCE        Allowed total drift in seconds
  TRACKVIEW_TOTAL_POLICY     recompute or reject
  TRACKVIEW_EXPORT_COMMAND   Command run after each CSV export

Data is stored in ~/.trackview/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	database := mustOpenDB(cfg)
	defer database.Close()

	engine := sync.NewEngine(database, cfg.ResolveSpoolDirs())

	fmt.Println("Running initial sync...")
	stats := engine.SyncAll()
	fmt.Printf(
		"Sync complete: %d file(s) seen, %d synced, %d document(s)\n",
		stats.FilesSeen, stats.Synced, stats.Documents,
	)

	stopWatcher := startFileWatcher(cfg, engine)
	defer stopWatcher()

	go startPeriodicSync(engine)

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, database, engine,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	fmt.Printf("trackview %s listening at http://%s:%d\n",
		version, cfg.Host, cfg.Port)

	if err := srv.ListenAndServe(); err != nil &&
		err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("trackview", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: trackview [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	config.MigrateFromLegacy(cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustOpenDB(cfg config.Config) *db.DB {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	return database
}

func startFileWatcher(
	cfg config.Config, engine *sync.Engine,
) func() {
	watcher, err := sync.NewWatcher(
		watcherDebounce, engine.SyncPaths,
	)
	if err != nil {
		log.Printf("warning: file watcher unavailable: %v", err)
		return func() {}
	}

	for _, dir := range cfg.ResolveSpoolDirs() {
		if _, err := os.Stat(dir); err == nil {
			_, _ = watcher.WatchRecursive(dir)
		}
	}
	watcher.Start()
	return watcher.Stop
}

func startPeriodicSync(engine *sync.Engine) {
	ticker := time.NewTicker(periodicSyncInterval)
	defer ticker.Stop()
	for range ticker.C {
		log.Println("Running scheduled sync...")
		engine.SyncAll()
	}
}
