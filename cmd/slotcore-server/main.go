package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"slotcore/internal/availability"
	"slotcore/internal/config"
	"slotcore/internal/conflict"
	"slotcore/internal/service/booking"
	"slotcore/internal/store"
	"slotcore/internal/store/postgres"
	"slotcore/internal/store/sqlite"
	"slotcore/internal/transport/rest"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "slotcore-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "slotcore-server"),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr()),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("log_level", cfg.LogLevel),
	)

	db, repo, err := openStore(log, cfg)
	if err != nil {
		log.Error("store open failed", slog.Any("err", err), slog.String("store_driver", cfg.StoreDriver))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("store close failed", slog.Any("err", err))
		}
	}()

	svc := booking.NewService(repo)
	planner := availability.NewPlanner(conflict.NewDetector(repo))

	hours, err := operatingHours(cfg)
	if err != nil {
		log.Error("invalid operating hours", slog.Any("err", err),
			slog.String("open", cfg.OperatingOpen), slog.String("close", cfg.OperatingClose))
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("invalid timezone", slog.Any("err", err), slog.String("timezone", cfg.Timezone))
		os.Exit(1)
	}

	router := rest.NewRouter(svc, planner, log, rest.Options{
		ServiceToken:    cfg.ServiceToken,
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		Hours:           hours,
		SlotDuration:    cfg.SlotDuration,
		DefaultTimezone: loc,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, srv, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func openStore(log *slog.Logger, cfg config.Config) (*bun.DB, store.AppointmentStore, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		log.Info("opening sqlite store", slog.String("path", cfg.SQLitePath))
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(context.Background(), db); err != nil {
			_ = sqlite.Close(db)
			return nil, nil, err
		}
		return db, sqlite.NewAppointmentRepo(db), nil
	default:
		log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.NewAppointmentRepo(db), nil
	}
}

func operatingHours(cfg config.Config) (availability.OperatingHours, error) {
	openH, openM, err := config.ParseDayTime(cfg.OperatingOpen)
	if err != nil {
		return availability.OperatingHours{}, err
	}
	closeH, closeM, err := config.ParseDayTime(cfg.OperatingClose)
	if err != nil {
		return availability.OperatingHours{}, err
	}
	return availability.OperatingHours{
		Open:  availability.DayTime{Hour: openH, Minute: openM},
		Close: availability.DayTime{Hour: closeH, Minute: closeM},
	}, nil
}

func shutdown(log *slog.Logger, srv *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = srv.Close()
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
