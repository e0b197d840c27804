package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/aibird-bridge/internal/bridge"
	"github.com/DoyleJ11/aibird-bridge/internal/config"
	"github.com/DoyleJ11/aibird-bridge/internal/device"
	"github.com/DoyleJ11/aibird-bridge/internal/httpapi"
	"github.com/DoyleJ11/aibird-bridge/internal/hub"
	"github.com/DoyleJ11/aibird-bridge/internal/store"
)

const usage = "usage: server [<port>]"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if len(args) == 1 {
		port, err := config.ParsePort(args[0])
		if err != nil {
			fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
			return 1
		}
		cfg.Port = port
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	log.Info("bye")
	return 0
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zc.Build()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Recorder, error) {
	if cfg.DatabaseDSN == "" {
		log.Info("no database configured, keeping shot history in memory")
		return store.NewMemory(0, 0), nil
	}
	g, err := store.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	rec, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Warn("closing history store", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// Live sessions, including websocket ones the http server no longer
	// tracks, are stopped by the hub when gctx ends.
	h := hub.NewHub(gctx, cfg.MaxSessions)

	opener := device.OpenerFunc(func(ctx context.Context) (device.Device, error) {
		r, err := device.Dial(ctx, cfg.PerceptionURL, device.RemoteOptions{
			Timeout: cfg.DeviceTimeout,
			Logger:  log.Named("device"),
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	})

	b := bridge.New(bridge.Deps{
		Hub:      h,
		Opener:   opener,
		Recorder: rec,
		Logger:   log.Named("bridge"),
	}, cfg.Bridge())

	g.Go(func() error {
		return b.ListenAndServe(gctx, cfg.ListenAddr())
	})

	if cfg.AdminAddr != "" {
		srv := &http.Server{
			Addr: cfg.AdminAddr,
			Handler: httpapi.SetupRoutes(httpapi.Deps{
				Hub:          h,
				Store:        rec,
				Agents:       b,
				AgentOrigins: cfg.WSOrigins,
				Logger:       log.Named("ws"),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info("admin api listening", zap.String("addr", cfg.AdminAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	return g.Wait()
}
