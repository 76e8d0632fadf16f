package db

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/ferrous-data/condition.report/internal/units"
)

// AttachAdminRoutes mounts the debug surface on mux: a tailSQL console
// over the run store and an on-demand gzipped snapshot download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", db.path), db.DB, &tailsql.DBOptions{
		Label: "carcheck run store",
	})

	debug.Handle("tailsql/", "SQL console over the run store", tsql.NewMux())
	debug.Handle("backup", "Download a gzipped snapshot of the run store", http.HandlerFunc(db.handleBackup))
}

// handleBackup snapshots the run store with VACUUM INTO and streams the
// snapshot back gzipped. The snapshot lands in the system temp dir and is
// removed once the download finishes.
func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("carcheck-runs-%s.db", time.Now().UTC().Format(units.CompactTimeLayout))
	path := filepath.Join(os.TempDir(), name)

	if _, err := db.DB.Exec("VACUUM INTO ?", path); err != nil {
		http.Error(w, fmt.Sprintf("snapshot run store: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Printf("remove run store snapshot %s: %v", path, err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open run store snapshot: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	if _, err := io.Copy(gz, f); err != nil {
		log.Printf("stream run store snapshot: %v", err)
		return
	}
	if err := gz.Close(); err != nil {
		log.Printf("finish run store snapshot: %v", err)
	}
}
