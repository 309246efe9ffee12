package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plating/internal/auth"
	"plating/internal/backend"
	"plating/internal/config"
	"plating/internal/dashboard"
	"plating/internal/handlers/admin"
	"plating/internal/handlers/common"
	"plating/internal/handlers/operator"
	"plating/internal/logger"
	"plating/internal/masterdata"
	"plating/internal/members"
	"plating/internal/metrics"
	"plating/internal/scan"
	"plating/internal/server"
	"plating/internal/session"
	"plating/internal/websocket"
)

const (
	sweepEvery   = 5 * time.Minute
	workflowIdle = 2 * time.Hour
	limiterIdle  = 30 * time.Minute
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	printConfig := flag.Bool("print-config", false, "Print the effective config and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := logger.New(cfg.App.Env)
	if err := run(cfg, log); err != nil {
		log.Error("plating console stopped", "err", err)
		os.Exit(1)
	}
}

func openSessions(cfg config.Config, log *slog.Logger) (session.Store, func(context.Context), error) {
	switch cfg.Session.Driver {
	case "redis":
		store := session.NewRedisStore(cfg.Session.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("redis session store: %w", err)
		}
		log.Info("session store ready", "driver", "redis", "addr", cfg.Session.RedisAddr)
		// Redis expires keys itself.
		return store, func(context.Context) {}, nil
	default:
		store, err := session.OpenSQLite(cfg.Session.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite session store: %w", err)
		}
		log.Info("session store ready", "driver", "sqlite", "path", cfg.Session.SQLitePath)
		purge := func(ctx context.Context) {
			n, err := store.DeleteExpired(ctx, time.Now())
			if err != nil {
				log.Warn("purge expired sessions", "err", err)
				return
			}
			if n > 0 {
				log.Debug("purged expired sessions", "count", n)
			}
		}
		return store, purge, nil
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	var (
		m       *metrics.Metrics
		metricH http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		metricH = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, m, log)

	store, purge, err := openSessions(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()
	sessions := session.NewManager(store, cfg.Session.TTL)

	hub := websocket.NewHub(log)
	registry := scan.NewRegistry(scan.Deps{
		Lots:     func(kind string) scan.LotBackend { return client.Lots(kind) },
		Location: cfg.Location(),
		Metrics:  m,
		OnChange: func(o scan.Owner, v scan.View) {
			hub.SendToUser(o.UserID, websocket.Event{Type: "scan_state", Action: "update", Data: v})
		},
	})
	limiter := auth.NewLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)
	if limiter.Trusted, err = auth.ParseProxies(cfg.HTTP.TrustedProxies); err != nil {
		return err
	}
	lockout := auth.NewLockout()
	palettes := dashboard.NewPalettes()

	app := &server.App{
		Sessions: sessions,
		Hub:      hub,
		Log:      log,
		Common: &common.Handler{
			Auth: &auth.Service{
				Backend:       client,
				Sessions:      sessions,
				Lockout:       lockout,
				Metrics:       m,
				Log:           log,
				RFIDMinLength: cfg.Auth.RFIDMinLength,
			},
			Limiter:  limiter,
			Registry: registry,
			Palettes: palettes,
			Dashboard: &dashboard.Dashboard{
				Issue:   client.Lots("issue"),
				Receive: client.Lots("receive"),
				Loc:     cfg.Location(),
			},
			Log:          log,
			SecureCookie: cfg.App.Env == "prod",
		},
		Operator: &operator.Handler{Registry: registry, Catalog: client.Catalog(), Log: log},
		Admin: &admin.Handler{
			Named: map[string]*masterdata.NamedScreen{
				"vendors":      masterdata.Named(client.Vendors(), hub),
				"groups":       masterdata.Named(client.Groups(), hub),
				"sections":     masterdata.Named(client.Sections(), hub),
				"control-lots": masterdata.Named(client.ControlLots(), hub),
			},
			Parts:        masterdata.Parts(client.PartMasters(), hub),
			PartTransfer: client.PartMasters(),
			Members:      members.New(client.Users(), hub),
			Notify:       hub,
			Log:          log,
		},
		Metrics:   metricH,
		StaticDir: cfg.HTTP.StaticDir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := registry.Sweep(workflowIdle); n > 0 {
					log.Debug("dropped idle workflows", "count", n)
				}
				limiter.Sweep(limiterIdle)
				lockout.Sweep()
				palettes.Sweep(cfg.Session.TTL)
				purge(ctx)
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("plating console starting", "addr", cfg.HTTP.Addr, "backend", cfg.Backend.BaseURL, "env", cfg.App.Env)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
