package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/tournament-registration/internal/config"
	"github.com/iliyamo/tournament-registration/internal/database"
	"github.com/iliyamo/tournament-registration/internal/handler"
	"github.com/iliyamo/tournament-registration/internal/middleware"
	"github.com/iliyamo/tournament-registration/internal/queue"
	"github.com/iliyamo/tournament-registration/internal/repository"
	"github.com/iliyamo/tournament-registration/internal/router"
	"github.com/iliyamo/tournament-registration/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	logger := config.NewLogger(config.LoadLogConfig(), os.Stdout)
	slog.SetDefault(logger)

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg)
	if err != nil {
		slog.Error("database connection failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := repository.NewUserRepo(db)
	tournamentRepo := repository.NewTournamentRepo(db)
	registrationRepo := repository.NewRegistrationRepo(db)
	statsRepo := repository.NewStatsRepo(db)

	ledger := service.NewLedger(db, tournamentRepo, registrationRepo, users)
	if cfg.NotifyEnabled {
		ledger.Notifier = service.NewAMQPNotifier(cfg.AMQPURL)
	}
	tournaments := service.NewTournamentService(db, tournamentRepo, registrationRepo, statsRepo, ledger)
	reporter := service.NewReporter(statsRepo, cfg.StatsStaleness)
	aggregator := service.NewAggregator(statsRepo)

	// redis is optional; without it caching and rate limiting are disabled
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	th := handler.NewTournamentHandler(tournaments)
	rh := handler.NewRegistrationHandler(ledger)
	sh := &handler.StatsHandler{Reporter: reporter, Aggregator: aggregator}
	purge := middleware.NewCachePurger(cacheCfg, rdb)

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db})
	router.RegisterPublic(e, th, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterParticipant(e, rh, cfg.JWTSecret, middleware.NewTokenBucket(rlCfg, rdb), purge)
	router.RegisterOrganizer(e, th, rh, sh, cfg.JWTSecret, purge)
	router.RegisterAdmin(e, sh, cfg.JWTSecret)

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "driver", cfg.DBDriver, "notify", cfg.NotifyEnabled)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.NotifyEnabled {
		g.Go(func() error {
			if err := queue.StartRegistrationConsumer(gctx, cfg.AMQPURL); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
