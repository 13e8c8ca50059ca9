package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"drinktea/internal/adapters/teaclient"
	"drinktea/internal/domain"
	"drinktea/internal/infra/config"
	"drinktea/internal/infra/queue"
	"drinktea/internal/infra/storage"
	"drinktea/internal/usecase/feed"
	"drinktea/internal/usecase/feedback"
	"drinktea/internal/usecase/identity"
	"drinktea/internal/usecase/ledger"
)

// app связывает профиль устройства с клиентом API.
type app struct {
	cfg      config.AppConfig
	log      zerolog.Logger
	ledger   *ledger.Ledger
	identity *identity.Store
	client   *teaclient.Client
	feedback *feedback.Service

	redis *redis.Client
}

func newApp(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger}

	var kv domain.KVStore
	switch cfg.Storage.Backend {
	case "redis":
		client, err := storage.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.redis = client
		kv = storage.NewRedis(client)
	case "memory":
		kv = storage.NewMemory()
	default:
		file, err := storage.NewFile(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open profile %s: %w", cfg.Storage.Path, err)
		}
		kv = file
	}

	ns := cfg.Storage.Namespace
	a.ledger = ledger.New(kv, ns, ledger.WithLocation(loc), ledger.WithLogger(logger.With().Str("component", "ledger").Logger()))
	a.identity = identity.NewStore(kv, ns)
	a.client, err = teaclient.New(cfg.Client.APIBaseURL, teaclient.WithTimeout(cfg.Client.Timeout))
	if err != nil {
		a.Close()
		return nil, err
	}

	var opts []feedback.Option
	if cfg.Feedback.Outbox {
		var outbox domain.Outbox
		queueLog := queue.WithLogger(logger.With().Str("component", "outbox").Logger())
		if a.redis != nil {
			outbox = queue.NewRedisOutbox(a.redis, ns+cfg.Queues.Outbox, queueLog)
		} else {
			outbox = queue.NewStoreOutbox(kv, ns+cfg.Queues.Outbox, queueLog)
		}
		opts = append(opts, feedback.WithOutbox(outbox, cfg.Feedback.MaxAttempts))
	}
	a.feedback = feedback.NewService(a.ledger, a.identity, a.client, logger.With().Str("component", "feedback").Logger(), opts...)
	return a, nil
}

func (a *app) session() *feed.Session {
	return feed.NewSession(a.client, a.ledger, a.identity,
		feed.WithPageSize(a.cfg.Client.PageSize),
		feed.WithWindowDays(a.cfg.Feedback.WindowDays),
		feed.WithImpressions(a.feedback),
		feed.WithLogger(a.log.With().Str("component", "feed").Logger()),
	)
}

// Close дожидается фоновых отправок и освобождает соединения.
func (a *app) Close() {
	if a.feedback != nil {
		a.feedback.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("teacli: ошибка закрытия redis")
		}
	}
}
