package archive

import (
	"context"
	"time"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/BearBump/TrackShelf/internal/services/statuses"
	"github.com/pkg/errors"
)

type Repository interface {
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetBookmarkByTrackNumber(ctx context.Context, userID uint64, trackNumber string) (*models.Bookmark, error)
	ArchiveBookmark(ctx context.Context, entry *models.ArchiveEntry, bookmarkID uint64) (uint64, error)
	ListArchive(ctx context.Context, userID uint64, offset, limit int) ([]*models.ArchiveEntry, int, error)
}

type ShipmentDirectory interface {
	GetByID(ctx context.Context, id uint64) (*models.Shipment, error)
	FindByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error)
}

type StatusResolver interface {
	ResolveHistory(ctx context.Context, history []models.HistoryEntry) []statuses.Resolved
}

type Service struct {
	repo      Repository
	directory ShipmentDirectory
	resolver  StatusResolver

	pageSize int
	now      func() time.Time
}

func New(repo Repository, directory ShipmentDirectory, resolver StatusResolver) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		resolver:  resolver,

		pageSize: 20,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithPageSize(n int) *Service {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// ConfirmReceipt переносит закладку в архив: снимок истории посылки с
// сырыми ссылками на статусы плюс дата получения, затем удаление живой
// закладки. Обе мутации идут одной транзакцией хранилища.
func (s *Service) ConfirmReceipt(ctx context.Context, phone, trackNumber string) error {
	u, err := s.repo.GetUserByPhone(ctx, phone)
	if err != nil {
		return err
	}

	b, err := s.repo.GetBookmarkByTrackNumber(ctx, u.ID, trackNumber)
	if err != nil {
		return err
	}

	// Обычно закладка уже зарезолвлена воркером; если нет — последняя
	// попытка найти посылку по трек-номеру прямо здесь.
	var sh *models.Shipment
	if b.ShipmentID != nil {
		sh, err = s.directory.GetByID(ctx, *b.ShipmentID)
	} else {
		sh, err = s.directory.FindByTrackNumber(ctx, b.TrackNumber)
	}
	if err != nil {
		return errors.Wrap(err, "load shipment for receipt confirmation")
	}

	entry := &models.ArchiveEntry{
		UserID:      u.ID,
		Description: b.Description,
		TrackNumber: b.TrackNumber,
		History:     append([]models.HistoryEntry(nil), sh.History...),
		ReceivedAt:  s.now(),
	}

	_, err = s.repo.ArchiveBookmark(ctx, entry, b.ID)
	return err
}

func (s *Service) BuildView(ctx context.Context, userID uint64, page int) (*models.ArchivePage, error) {
	if page < 1 {
		page = 1
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	offset := (page - 1) * s.pageSize
	entries, total, err := s.repo.ListArchive(ctx, userID, offset, s.pageSize)
	if err != nil {
		return nil, err
	}

	views := make([]models.ArchiveEntryView, 0, len(entries))
	for _, e := range entries {
		v := models.ArchiveEntryView{
			TrackNumber: e.TrackNumber,
			Description: e.Description,
			ReceivedAt:  e.ReceivedAt,
		}
		if len(e.History) > 0 {
			v.History = statuses.ToViews(s.resolver.ResolveHistory(ctx, e.History))
		}
		views = append(views, v)
	}

	return &models.ArchivePage{
		Archive:       views,
		TotalPages:    (total + s.pageSize - 1) / s.pageSize,
		TotalArchives: total,
	}, nil
}
