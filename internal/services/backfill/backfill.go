package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TrackShelf/internal/broker/messages"
	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimDueUnresolvedBookmarks(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Bookmark, error)
	SetBookmarkShipmentID(ctx context.Context, bookmarkID, shipmentID uint64) error
	MarkBookmarkResolveFailed(ctx context.Context, bookmarkID uint64, nextResolveAt time.Time) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	ClaimShipmentContact(ctx context.Context, shipmentID uint64, contact string) error
}

type Directory interface {
	FindByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Worker — отдельный проход реконсиляции: read-path закладок ничего не
// пишет, а все побочные эффекты (бэкфил shipment_id, клейм контакта)
// происходят здесь, по расписанию и с lease против двойной обработки.
type Worker struct {
	repo      Repository
	directory Directory
	producer  Producer
	rl        RateLimiter

	topic string

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64

	// Лестница задержек повторного резолва ненайденных трек-номеров.
	backoff [4]time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalResolved       atomic.Int64
	totalMisses         atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, directory Directory, producer Producer, rl RateLimiter, topic string) *Worker {
	return &Worker{
		repo: repo, directory: directory, producer: producer, rl: rl, topic: topic,

		pollInterval:       5 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 300,
		backoff:            [4]time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute, 60 * time.Minute},

		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (w *Worker) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Worker {
	if pollInterval > 0 {
		w.pollInterval = pollInterval
	}
	if batchSize > 0 {
		w.batchSize = batchSize
	}
	if concurrency > 0 {
		w.concurrency = concurrency
	}
	if lease > 0 {
		w.lease = lease
	}
	if rlPerMin > 0 {
		w.rateLimitPerMinute = rlPerMin
	}
	return w
}

func (w *Worker) WithBackoff(b1, b2, b3, b4 time.Duration) *Worker {
	cur := w.backoff
	for i, d := range []time.Duration{b1, b2, b3, b4} {
		if d > 0 {
			cur[i] = d
		}
	}
	w.backoff = cur
	return w
}

// Trigger forces an immediate pass (best-effort, non-blocking).
func (w *Worker) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed  int64      `json:"totalClaimed"`
	TotalResolved int64      `json:"totalResolved"`
	TotalMisses   int64      `json:"totalMisses"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (w *Worker) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalClaimed:  w.totalClaimed.Load(),
		TotalResolved: w.totalResolved.Load(),
		TotalMisses:   w.totalMisses.Load(),
		TotalErrors:   w.totalErrors.Load(),
		InFlight:      w.inFlight.Load(),
	}
	if n := w.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	w.lastCycleUnixNano.Store(now.UnixNano())

	items, err := w.repo.ClaimDueUnresolvedBookmarks(ctx, now, w.batchSize, w.lease)
	if err != nil {
		slog.Error("claim due bookmarks", "error", err.Error())
		w.lastErrorMu.Lock()
		w.lastError = err.Error()
		w.lastErrorMu.Unlock()
		return
	}
	w.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, b := range items {
		sem <- struct{}{}
		wg.Add(1)
		bCopy := b
		w.inFlight.Add(1)
		go func() {
			defer func() {
				w.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := w.processOne(ctx, bCopy); err != nil {
				w.totalErrors.Add(1)
				w.lastErrorMu.Lock()
				w.lastError = err.Error()
				w.lastErrorMu.Unlock()
				slog.Error("backfill bookmark", "bookmark_id", bCopy.ID, "error", err.Error())
			}
		}()
	}
	wg.Wait()
}

func (w *Worker) processOne(ctx context.Context, b *models.Bookmark) error {
	now := time.Now().UTC()

	if w.rl != nil && w.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:backfill:%s", now.Format("200601021504"))
		allowed, n, err := w.rl.Allow(ctx, minuteKey, w.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			// Слишком много поисков в минуту: притормозим, БД не резиновая.
			slog.Warn("rate limit exceeded", "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	sh, err := w.directory.FindByTrackNumber(ctx, b.TrackNumber)
	if err != nil {
		next := now.Add(w.backoffDelay(b.ResolveFailCount + 1))
		if mErr := w.repo.MarkBookmarkResolveFailed(ctx, b.ID, next); mErr != nil {
			return mErr
		}
		if errors.Is(err, models.ErrNotFound) {
			// Посылки ещё нет в каталоге — попробуем позже.
			w.totalMisses.Add(1)
			return nil
		}
		return err
	}

	// Запись кэша идемпотентна: повторный проход с тем же результатом
	// ничего не меняет.
	if err := w.repo.SetBookmarkShipmentID(ctx, b.ID, sh.ID); err != nil {
		return err
	}

	u, err := w.repo.GetUserByID(ctx, b.UserID)
	if err != nil {
		return err
	}
	if sh.Contact != u.Phone {
		if err := w.repo.ClaimShipmentContact(ctx, sh.ID, u.Phone); err != nil {
			return err
		}
	}

	w.totalResolved.Add(1)

	if w.producer == nil || w.topic == "" {
		return nil
	}
	msg := messages.BookmarkResolved{
		BookmarkID:  b.ID,
		UserID:      b.UserID,
		ShipmentID:  sh.ID,
		TrackNumber: b.TrackNumber,
		ResolvedAt:  now,
	}
	body, _ := json.Marshal(msg)
	key := []byte(fmt.Sprintf("%d", sh.ID))
	return w.producer.Publish(ctx, w.topic, key, body)
}

func (w *Worker) backoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return w.backoff[0]
	case nextFailCount == 2:
		return w.backoff[1]
	case nextFailCount == 3:
		return w.backoff[2]
	default:
		return w.backoff[3]
	}
}
