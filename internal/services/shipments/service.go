package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/TrackShelf/internal/cache"
	"github.com/BearBump/TrackShelf/internal/models"
)

type Repository interface {
	GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error)
	FindShipmentByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error)
}

// Service — каталог посылок: только чтение и поиск, никакой логики закладок.
type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, currentTTL: currentTTL}
}

func (s *Service) GetByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	// Кэш — "лучшее усилие": промах или битое значение просто ведут в БД.
	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, currentKey(id)); err == nil && ok {
			var sh models.Shipment
			if json.Unmarshal(b, &sh) == nil {
				return &sh, nil
			}
		}
	}

	sh, err := s.repo.GetShipmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.currentTTL > 0 {
		b, _ := json.Marshal(sh)
		_ = s.cache.Set(ctx, currentKey(id), b, s.currentTTL)
	}
	return sh, nil
}

// FindByTrackNumber ищет по нормализованному трек-номеру. Не кэшируется:
// после бэкфила закладка ходит по id.
func (s *Service) FindByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error) {
	return s.repo.FindShipmentByTrackNumber(ctx, trackNumber)
}

// Invalidate сбрасывает кэшированное состояние посылки (например, после
// того как воркер переписал контакт).
func (s *Service) Invalidate(ctx context.Context, id uint64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, currentKey(id))
}

func currentKey(id uint64) string {
	return fmt.Sprintf("shipment:%d:current", id)
}
