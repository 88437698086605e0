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

	"github.com/clawdshartavenger/alta-parking-app/internal/browser"
	"github.com/clawdshartavenger/alta-parking-app/internal/config"
	"github.com/clawdshartavenger/alta-parking-app/internal/httpapi"
	"github.com/clawdshartavenger/alta-parking-app/internal/logbus"
	"github.com/clawdshartavenger/alta-parking-app/internal/monitor"
	"github.com/clawdshartavenger/alta-parking-app/internal/notify"
	"github.com/clawdshartavenger/alta-parking-app/internal/provider/altaweb"
	"github.com/clawdshartavenger/alta-parking-app/internal/store/sqlite"
	"github.com/clawdshartavenger/alta-parking-app/internal/update"
)

const version = "1.2.0"

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	bus := logbus.New(200)
	bus.Log("info", "server starting", map[string]any{"addr": cfg.Server.Addr, "version": version})

	ctx := context.Background()
	store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath, cfg.Storage.SecretKey)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	// Resolve a browser binary up front so the first attempt does not pay
	// the download cost; the provider re-resolves per attempt anyway.
	go func() {
		if bin, err := browser.EnsureBrowser(""); err != nil {
			bus.Log("warn", "browser not resolved yet", map[string]any{"error": err.Error()})
		} else {
			bus.Log("info", "browser ready", map[string]any{"bin": bin})
		}
	}()

	notifier := notify.NewEmailNotifier(store, bus, cfg.Notify.Queue())
	prov := altaweb.New(cfg.Site, bus)
	mon := monitor.New(monitor.Options{
		Provider: prov,
		Bus:      bus,
		Notifier: notifier,
		Poll:     cfg.Poll,
	})

	checker := update.New(cfg.Update)
	go func() {
		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		res, err := checker.Check(checkCtx, version)
		if err != nil {
			bus.Log("debug", "update check failed", map[string]any{"error": err.Error()})
			return
		}
		if res.Newer {
			bus.Log("info", "a newer version is available", map[string]any{
				"current": res.Current,
				"latest":  res.Latest.Version,
				"url":     res.Latest.URL,
			})
		}
	}()

	api := httpapi.New(httpapi.Options{
		Cfg:     cfg,
		Bus:     bus,
		Store:   store,
		Monitor: mon,
		Updates: checker,
		Version: version,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		bus.Log("info", "shutdown signal received", map[string]any{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			bus.Log("error", "http server error", map[string]any{"error": err.Error()})
		}
	}

	// An attempt already in flight gets to finish before the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Poll.AttemptTimeout()+15*time.Second)
	defer cancel()

	_ = mon.Stop(shutdownCtx)
	_ = notifier.Close(shutdownCtx)
	_ = server.Shutdown(shutdownCtx)
	bus.Log("info", "server stopped", nil)
}
