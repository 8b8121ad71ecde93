package bookmarks

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/BearBump/TrackShelf/internal/services/statuses"
	"github.com/pkg/errors"
)

type Repository interface {
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	ListBookmarks(ctx context.Context, userID uint64, offset, limit int) ([]*models.Bookmark, int, error)
	AddBookmark(ctx context.Context, userID uint64, in models.BookmarkCreateInput) (*models.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID uint64, trackNumber string) error
}

type ShipmentDirectory interface {
	GetByID(ctx context.Context, id uint64) (*models.Shipment, error)
	FindByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error)
}

type StatusResolver interface {
	ResolveHistory(ctx context.Context, history []models.HistoryEntry) []statuses.Resolved
}

// Service собирает страницу закладок: каждая закладка сопоставляется с
// посылкой из каталога и получает производные поля. Read-path чистый:
// бэкфил кэша резолва живёт в воркере, а не здесь.
type Service struct {
	repo      Repository
	directory ShipmentDirectory
	resolver  StatusResolver

	pageSize    int
	concurrency int
}

func New(repo Repository, directory ShipmentDirectory, resolver StatusResolver) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		resolver:  resolver,

		pageSize:    10,
		concurrency: 8,
	}
}

func (s *Service) WithPageSize(n int) *Service {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

func (s *Service) BuildView(ctx context.Context, userID uint64, page int) (*models.BookmarkPage, error) {
	if page < 1 {
		page = 1
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	offset := (page - 1) * s.pageSize
	bs, total, err := s.repo.ListBookmarks(ctx, userID, offset, s.pageSize)
	if err != nil {
		return nil, err
	}

	// Резолвим окно конкурентно, результат кладём по индексу.
	views := make([]models.BookmarkView, len(bs))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, b := range bs {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, b *models.Bookmark) {
			defer func() {
				<-sem
				wg.Done()
			}()
			views[i] = s.resolveOne(ctx, b)
		}(i, b)
	}
	wg.Wait()

	// Порядок пересчитывается после fan-in: готовые к выдаче всегда выше,
	// внутри группы — новые выше.
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].ReadyForPickup != views[j].ReadyForPickup {
			return views[i].ReadyForPickup
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	return &models.BookmarkPage{
		Items:          views,
		TotalPages:     (total + s.pageSize - 1) / s.pageSize,
		TotalBookmarks: total,
	}, nil
}

// resolveOne не возвращает ошибку: сбой поиска по одной закладке не валит
// пачку, закладка просто уходит в unresolved.
func (s *Service) resolveOne(ctx context.Context, b *models.Bookmark) models.BookmarkView {
	v := models.BookmarkView{
		TrackNumber: b.TrackNumber,
		Description: b.Description,
		CreatedAt:   b.CreatedAt,
	}

	var sh *models.Shipment
	var err error
	if b.ShipmentID != nil {
		sh, err = s.directory.GetByID(ctx, *b.ShipmentID)
	} else {
		sh, err = s.directory.FindByTrackNumber(ctx, b.TrackNumber)
	}
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			slog.Warn("resolve bookmark", "bookmark_id", b.ID, "error", err.Error())
		}
		return v
	}

	resolved := s.resolver.ResolveHistory(ctx, sh.History)
	v.ReadyForPickup = statuses.ReadyForPickup(resolved)
	// Для зарезолвленной закладки показываем дату создания посылки.
	v.CreatedAt = sh.CreatedAt
	v.Details = &models.ShipmentDetails{
		ShipmentID: sh.ID,
		Status:     sh.Status,
		History:    statuses.ToViews(resolved),
		Price:      sh.Price,
		Weight:     sh.Weight,
	}
	return v
}

func (s *Service) Add(ctx context.Context, userID uint64, in models.BookmarkCreateInput) (*models.Bookmark, error) {
	if models.NormalizeTrackNumber(in.TrackNumber) == "" {
		return nil, errors.New("trackNumber is required")
	}
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.AddBookmark(ctx, userID, in)
}

func (s *Service) Delete(ctx context.Context, userID uint64, trackNumber string) error {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteBookmark(ctx, userID, trackNumber)
}
