package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/TrackShelf/config"
	"github.com/BearBump/TrackShelf/internal/broker/kafka"
	"github.com/BearBump/TrackShelf/internal/cache/rediscache"
	"github.com/BearBump/TrackShelf/internal/services/backfill"
	"github.com/BearBump/TrackShelf/internal/services/shipments"
	"github.com/BearBump/TrackShelf/internal/storage/pgshelf"
)

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo backfill.Repository, directory backfill.Directory, closeFn func(), err error)
	newProducer    func(cfg *config.Config) backfill.Producer
	newRateLimiter func(cfg *config.Config) backfill.RateLimiter
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (backfill.Repository, backfill.Directory, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgshelf.New(connString)
			if err != nil {
				return nil, nil, nil, err
			}
			// Воркеру кэш каталога не нужен: он и есть источник инвалидаций.
			return st, shipments.New(st, nil, 0), st.Close, nil
		},
		newProducer: func(cfg *config.Config) backfill.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) backfill.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
	}
}

func newWorker(cfg *config.Config, f workerFactories) (*backfill.Worker, func(), error) {
	topic := cfg.Kafka.BookmarkResolvedTopicName
	if topic == "" {
		topic = "bookmark.resolved"
	}

	pollInterval := time.Duration(cfg.TrackShelf.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	batchSize := cfg.TrackShelf.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.TrackShelf.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.TrackShelf.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.TrackShelf.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 300
	}

	repo, directory, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)

	w := backfill.New(repo, directory, producer, rl, topic).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithBackoff(
			time.Duration(cfg.TrackShelf.WorkerBackoff1Seconds)*time.Second,
			time.Duration(cfg.TrackShelf.WorkerBackoff2Seconds)*time.Second,
			time.Duration(cfg.TrackShelf.WorkerBackoff3Seconds)*time.Second,
			time.Duration(cfg.TrackShelf.WorkerBackoff4Seconds)*time.Second,
		)
	return w, closeFn, nil
}

func RunShelfWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	w, closeFn, err := newWorker(cfg, f)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: cfg.TrackShelf.WorkerHTTPAddr,
			worker:   w,
			cfg:      cfg,
		})
	}()

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- w.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-workerErr:
		return err
	case err := <-httpErr:
		return err
	}
}
