package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	bookmarksapi "github.com/BearBump/TrackShelf/internal/api/bookmarks_api"
	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/BearBump/TrackShelf/internal/services/archive"
	"github.com/BearBump/TrackShelf/internal/services/bookmarks"
	"github.com/BearBump/TrackShelf/internal/services/shipments"
	"github.com/BearBump/TrackShelf/internal/services/statuses"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{}

func (fakeStore) CreateUser(ctx context.Context, phone string) (*models.User, error) {
	return &models.User{ID: 1, Phone: phone}, nil
}
func (fakeStore) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	return &models.User{ID: id}, nil
}
func (fakeStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return &models.User{ID: 1, Phone: phone}, nil
}
func (fakeStore) ListBookmarks(ctx context.Context, userID uint64, offset, limit int) ([]*models.Bookmark, int, error) {
	return nil, 0, nil
}
func (fakeStore) AddBookmark(ctx context.Context, userID uint64, in models.BookmarkCreateInput) (*models.Bookmark, error) {
	return &models.Bookmark{ID: 1, UserID: userID, TrackNumber: in.TrackNumber}, nil
}
func (fakeStore) DeleteBookmark(ctx context.Context, userID uint64, trackNumber string) error {
	return nil
}
func (fakeStore) GetBookmarkByTrackNumber(ctx context.Context, userID uint64, trackNumber string) (*models.Bookmark, error) {
	return nil, models.ErrNotFound
}
func (fakeStore) ArchiveBookmark(ctx context.Context, entry *models.ArchiveEntry, bookmarkID uint64) (uint64, error) {
	return 1, nil
}
func (fakeStore) ListArchive(ctx context.Context, userID uint64, offset, limit int) ([]*models.ArchiveEntry, int, error) {
	return nil, 0, nil
}
func (fakeStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	return &models.Settings{}, nil
}
func (fakeStore) UpdateSettings(ctx context.Context, st *models.Settings) error { return nil }

func (fakeStore) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	return nil, models.ErrNotFound
}
func (fakeStore) FindShipmentByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error) {
	return nil, models.ErrNotFound
}
func (fakeStore) GetStatusesByIDs(ctx context.Context, ids []uint64) (map[uint64]*models.Status, error) {
	return map[uint64]*models.Status{}, nil
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunShelfAPI_SwaggerAndRoutesServed(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	st := fakeStore{}
	directory := shipments.New(st, nil, 0)
	resolver := statuses.NewResolver(st)
	api := bookmarksapi.New(
		bookmarks.New(st, directory, resolver),
		archive.New(st, directory, resolver),
		st, st,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := shelfAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "bookmark.resolved",
		consumerGroup: "shelf-api",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runShelfAPI(ctx, opts, api, directory, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "\"swagger\"")

	// пустой список закладок отдаётся даже без БД
	resp2, err := http.Get("http://" + httpAddr + "/users/1/bookmarks")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, 200, resp2.StatusCode)

	cancel()
	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case <-errCh:
	}
}

func TestRunShelfAPI_RequiresSwaggerFile(t *testing.T) {
	err := runShelfAPI(context.Background(), shelfAPIOpts{httpAddr: "127.0.0.1:0"}, nil, nil, fakeConsumer{})
	require.Error(t, err)

	err = runShelfAPI(context.Background(), shelfAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, nil, nil, fakeConsumer{})
	require.Error(t, err)
}
