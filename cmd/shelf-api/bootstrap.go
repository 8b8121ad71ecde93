package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TrackShelf/config"
	bookmarksapi "github.com/BearBump/TrackShelf/internal/api/bookmarks_api"
	"github.com/BearBump/TrackShelf/internal/broker/kafka"
	"github.com/BearBump/TrackShelf/internal/cache/rediscache"
	"github.com/BearBump/TrackShelf/internal/services/archive"
	"github.com/BearBump/TrackShelf/internal/services/bookmarks"
	"github.com/BearBump/TrackShelf/internal/services/shipments"
	"github.com/BearBump/TrackShelf/internal/services/statuses"
	"github.com/BearBump/TrackShelf/internal/storage/pgshelf"
)

type shelfAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      shelfAPIOpts
	api       *bookmarksapi.API
	directory *shipments.Service
	consumer  *kafka.Consumer
	closeDB   func()
}

func mustBootstrapShelfAPI() *shelfAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.TrackShelf.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.TrackShelf.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "shelf-api"
	}
	topic := cfg.Kafka.BookmarkResolvedTopicName
	if topic == "" {
		topic = "bookmark.resolved"
	}
	cacheTTL := time.Duration(cfg.TrackShelf.ShipmentCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	directory := shipments.New(st, rc, cacheTTL)
	resolver := statuses.NewResolver(st)

	bookmarksSvc := bookmarks.New(st, directory, resolver).
		WithPageSize(cfg.TrackShelf.BookmarksPageSize).
		WithConcurrency(cfg.TrackShelf.ResolveConcurrency)
	archiveSvc := archive.New(st, directory, resolver).
		WithPageSize(cfg.TrackShelf.ArchivePageSize)

	api := bookmarksapi.New(bookmarksSvc, archiveSvc, st, st)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &shelfAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: shelfAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		api:       api,
		directory: directory,
		consumer:  consumer,
		closeDB:   st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshelf.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshelf.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *shelfAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *shelfAPIApp) Run() error {
	return runShelfAPI(a.ctx, a.opts, a.api, a.directory, a.consumer)
}
