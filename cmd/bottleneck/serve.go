package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/bottleneck/internal/api"
	"github.com/banshee-data/bottleneck/internal/db"
	"github.com/banshee-data/bottleneck/internal/runner"
	"github.com/banshee-data/bottleneck/internal/sim"
	"github.com/banshee-data/bottleneck/internal/stream"
	"github.com/banshee-data/bottleneck/internal/units"
)

func handleServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	sf := registerSimFlags(fs)
	listen := fs.String("listen", ":8080", "Listen address")
	speedUnits := fs.String("units", units.KMPH, "Default speed units: "+units.GetValidUnitsString())
	dbPath := fs.String("db", "", "SQLite archive; enables /api/archive, /api/runs and the admin routes")
	paused := fs.Bool("paused", false, "Start with the simulation paused")
	alertTTL := fs.Duration("alert-ttl", api.DefaultAlertTTL, "How long incident alerts stay visible")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" {
		return errors.New("listen address is required")
	}
	if !units.IsValid(*speedUnits) {
		return fmt.Errorf("invalid units %q, want one of: %s", *speedUnits, units.GetValidUnitsString())
	}

	cfg, sc, err := sf.resolve()
	if err != nil {
		return err
	}
	engine, err := sim.New(cfg, sc)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	hub := stream.NewHub()
	r, err := runner.New(runner.Config{Engine: engine, StartPaused: *paused, OnTick: hub.Publish})
	if err != nil {
		return err
	}

	opts := []api.Option{api.WithAlertTTL(*alertTTL), api.WithStream(hub)}
	var store *db.DB
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()
		opts = append(opts, api.WithArchive(store))
	}

	mux := api.NewServer(r, *speedUnits, opts...).ServeMux()
	if store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			return fmt.Errorf("attach admin routes: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	// simulation loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.Run(ctx); err != nil {
			log.Printf("runner stopped: %v", err)
		}
		log.Print("runner routine terminated")
	}()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			log.Printf("serving run %s (%s) on %s", r.ID(), sc.ID, *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveErr <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-serveErr:
			hub.Close()
			log.Printf("failed to start server: %v", err)
			serveErr <- err
			cancel()
			return
		}
		log.Println("shutting down HTTP server...")
		// Ends open event streams so Shutdown does not wait on them.
		hub.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	select {
	case err := <-serveErr:
		return err
	default:
	}

	if store != nil {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer saveCancel()
		if err := store.SaveRun(saveCtx, r.ID(), r.Config(), r.Latest()); err != nil {
			return fmt.Errorf("archive run on shutdown: %w", err)
		}
		log.Printf("archived run %s at tick %d", r.ID(), r.Latest().Tick)
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
