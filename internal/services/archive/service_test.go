package archive

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/BearBump/TrackShelf/internal/services/statuses"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	userByPhone map[string]*models.User
	userByID    map[uint64]*models.User
	bookmark    *models.Bookmark
	bookmarkErr error

	archived   *models.ArchiveEntry
	archivedID uint64
	archiveErr error

	entries []*models.ArchiveEntry
	total   int

	listOffset, listLimit int
}

func (f *fakeRepo) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	if u, ok := f.userByID[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeRepo) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	if u, ok := f.userByPhone[phone]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeRepo) GetBookmarkByTrackNumber(ctx context.Context, userID uint64, trackNumber string) (*models.Bookmark, error) {
	if f.bookmarkErr != nil {
		return nil, f.bookmarkErr
	}
	return f.bookmark, nil
}

func (f *fakeRepo) ArchiveBookmark(ctx context.Context, entry *models.ArchiveEntry, bookmarkID uint64) (uint64, error) {
	if f.archiveErr != nil {
		return 0, f.archiveErr
	}
	f.archived = entry
	f.archivedID = bookmarkID
	return 77, nil
}

func (f *fakeRepo) ListArchive(ctx context.Context, userID uint64, offset, limit int) ([]*models.ArchiveEntry, int, error) {
	f.listOffset, f.listLimit = offset, limit
	return f.entries, f.total, nil
}

type fakeDirectory struct {
	byID    map[uint64]*models.Shipment
	byTrack map[string]*models.Shipment

	idCalls, trackCalls int
}

func (f *fakeDirectory) GetByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	f.idCalls++
	if sh, ok := f.byID[id]; ok {
		return sh, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeDirectory) FindByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error) {
	f.trackCalls++
	if sh, ok := f.byTrack[models.NormalizeTrackNumber(trackNumber)]; ok {
		return sh, nil
	}
	return nil, models.ErrNotFound
}

type fakeStatusRepo struct {
	statuses map[uint64]*models.Status
}

func (f *fakeStatusRepo) GetStatusesByIDs(ctx context.Context, ids []uint64) (map[uint64]*models.Status, error) {
	return f.statuses, nil
}

func newResolver() *statuses.Resolver {
	return statuses.NewResolver(&fakeStatusRepo{statuses: map[uint64]*models.Status{
		1: {ID: 1, Code: models.StatusCodeDelivered, StatusText: "delivered"},
	}})
}

func uintPtr(v uint64) *uint64 { return &v }

func TestConfirmReceipt_MovesBookmarkSnapshot(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := []models.HistoryEntry{{StatusID: 1, Date: now.Add(-time.Hour)}}
	sh := &models.Shipment{ID: 10, TrackNumber: "LP001", History: history}

	repo := &fakeRepo{
		userByPhone: map[string]*models.User{"+100": {ID: 1, Phone: "+100"}},
		bookmark:    &models.Bookmark{ID: 5, UserID: 1, TrackNumber: "LP001", Description: "книги", ShipmentID: uintPtr(10)},
	}
	dir := &fakeDirectory{byID: map[uint64]*models.Shipment{10: sh}}

	s := New(repo, dir, newResolver())
	s.now = func() time.Time { return now }

	require.NoError(t, s.ConfirmReceipt(context.Background(), "+100", "LP001"))
	require.Equal(t, uint64(5), repo.archivedID)
	require.NotNil(t, repo.archived)
	require.Equal(t, uint64(1), repo.archived.UserID)
	require.Equal(t, "книги", repo.archived.Description)
	require.Equal(t, history, repo.archived.History)
	require.Equal(t, now, repo.archived.ReceivedAt)
	require.Zero(t, dir.trackCalls)
}

func TestConfirmReceipt_FallbackLookupWhenUnresolved(t *testing.T) {
	sh := &models.Shipment{ID: 10, TrackNumber: "LP001", History: []models.HistoryEntry{{StatusID: 1}}}
	repo := &fakeRepo{
		userByPhone: map[string]*models.User{"+100": {ID: 1}},
		bookmark:    &models.Bookmark{ID: 5, UserID: 1, TrackNumber: "lp 001"},
	}
	dir := &fakeDirectory{byTrack: map[string]*models.Shipment{"lp001": sh}}

	s := New(repo, dir, newResolver())
	require.NoError(t, s.ConfirmReceipt(context.Background(), "+100", "lp 001"))
	require.Equal(t, 1, dir.trackCalls)
	require.Zero(t, dir.idCalls)
	require.NotNil(t, repo.archived)
}

func TestConfirmReceipt_UnknownPhone(t *testing.T) {
	s := New(&fakeRepo{}, &fakeDirectory{}, newResolver())
	err := s.ConfirmReceipt(context.Background(), "+404", "LP001")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestConfirmReceipt_NoBookmark(t *testing.T) {
	repo := &fakeRepo{
		userByPhone: map[string]*models.User{"+100": {ID: 1}},
		bookmarkErr: models.ErrNotFound,
	}
	s := New(repo, &fakeDirectory{}, newResolver())
	err := s.ConfirmReceipt(context.Background(), "+100", "LP001")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestConfirmReceipt_NoShipmentAnywhere(t *testing.T) {
	repo := &fakeRepo{
		userByPhone: map[string]*models.User{"+100": {ID: 1}},
		bookmark:    &models.Bookmark{ID: 5, UserID: 1, TrackNumber: "GHOST"},
	}
	s := New(repo, &fakeDirectory{}, newResolver())
	err := s.ConfirmReceipt(context.Background(), "+100", "GHOST")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.Nil(t, repo.archived)
}

func TestConfirmReceipt_ArchiveErrorPropagates(t *testing.T) {
	want := errors.New("tx failed")
	repo := &fakeRepo{
		userByPhone: map[string]*models.User{"+100": {ID: 1}},
		bookmark:    &models.Bookmark{ID: 5, UserID: 1, TrackNumber: "LP001", ShipmentID: uintPtr(10)},
		archiveErr:  want,
	}
	dir := &fakeDirectory{byID: map[uint64]*models.Shipment{10: {ID: 10}}}
	s := New(repo, dir, newResolver())
	require.ErrorIs(t, s.ConfirmReceipt(context.Background(), "+100", "LP001"), want)
}

func TestBuildView_ResolvesHistoryAndTotals(t *testing.T) {
	received := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		userByID: map[uint64]*models.User{1: {ID: 1}},
		entries: []*models.ArchiveEntry{
			{ID: 1, TrackNumber: "LP001", Description: "ноутбук", History: []models.HistoryEntry{{StatusID: 1, Date: received}}, ReceivedAt: received},
			{ID: 2, TrackNumber: "LP002", ReceivedAt: received},
		},
		total: 41,
	}
	s := New(repo, &fakeDirectory{}, newResolver()).WithPageSize(20)

	page, err := s.BuildView(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalPages) // ceil(41/20)
	require.Equal(t, 41, page.TotalArchives)
	require.Equal(t, 20, repo.listOffset)
	require.Equal(t, 20, repo.listLimit)

	require.Len(t, page.Archive, 2)
	require.Len(t, page.Archive[0].History, 1)
	require.Equal(t, "delivered", page.Archive[0].History[0].StatusText)
	require.Empty(t, page.Archive[1].History)
}

func TestBuildView_UserNotFound(t *testing.T) {
	s := New(&fakeRepo{}, &fakeDirectory{}, newResolver())
	_, err := s.BuildView(context.Background(), 9, 1)
	require.ErrorIs(t, err, models.ErrNotFound)
}
