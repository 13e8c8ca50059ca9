package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"drinktea/internal/adapters/api"
	"drinktea/internal/adapters/repo"
	"drinktea/internal/domain"
	"drinktea/internal/infra/config"
	"drinktea/internal/infra/db"
	httpinfra "drinktea/internal/infra/http"
	logpkg "drinktea/internal/infra/log"
	"drinktea/internal/infra/metrics"
	"drinktea/internal/infra/queue"
	"drinktea/internal/usecase/catalog"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	teaRepo, closeRepo, err := openRepo(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer closeRepo()

	var publisher domain.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitPublisher(cfg.RabbitURL, cfg.Queues.Exchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	svc := catalog.NewService(teaRepo, publisher, logger.With().Str("component", "catalog").Logger())
	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger(), cfg.CORSOrigins,
		httpinfra.WithRequestTimeout(cfg.RequestTimeout))
	api.NewHandler(svc, logger.With().Str("component", "api").Logger()).Register(server.Router)

	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(fmt.Sprintf(":%d", cfg.Port))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("api: остановка")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("api: сервер остановлен с ошибкой")
	}
}

func openRepo(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.TeaRepo, func(), error) {
	if cfg.PGDSN == "" {
		logger.Warn().Msg("api: PG_DSN не задан, каталог хранится в памяти")
		var teas []domain.Tea
		if cfg.SeedDemo {
			teas = repo.DemoTeas(time.Now())
		}
		return repo.NewMemory(teas...), func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	pg := repo.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if cfg.SeedDemo {
		n, err := pg.SeedTeas(ctx, repo.DemoTeas(time.Now()))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if n > 0 {
			logger.Info().Int("teas", n).Msg("api: демо-каталог загружен")
		}
	}
	return pg, pool.Close, nil
}
