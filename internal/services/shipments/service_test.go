package shipments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	byID    map[uint64]*models.Shipment
	byTrack map[string]*models.Shipment

	idCalls int
}

func (f *fakeRepo) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	f.idCalls++
	if sh, ok := f.byID[id]; ok {
		return sh, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeRepo) FindShipmentByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error) {
	if sh, ok := f.byTrack[models.NormalizeTrackNumber(trackNumber)]; ok {
		return sh, nil
	}
	return nil, models.ErrNotFound
}

type memCache struct {
	data   map[string][]byte
	getErr error
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func TestGetByID_CachesAfterMiss(t *testing.T) {
	repo := &fakeRepo{byID: map[uint64]*models.Shipment{
		42: {ID: 42, TrackNumber: "LP001", Status: models.StatusCodeInTransit},
	}}
	c := newMemCache()
	s := New(repo, c, time.Minute)

	sh, err := s.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "LP001", sh.TrackNumber)
	require.Equal(t, 1, repo.idCalls)
	require.Contains(t, c.data, "shipment:42:current")

	// Второе чтение идёт из кэша.
	sh2, err := s.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, sh.ID, sh2.ID)
	require.Equal(t, 1, repo.idCalls)
}

func TestGetByID_CorruptCacheFallsThrough(t *testing.T) {
	repo := &fakeRepo{byID: map[uint64]*models.Shipment{42: {ID: 42}}}
	c := newMemCache()
	c.data["shipment:42:current"] = []byte("{not json")

	s := New(repo, c, time.Minute)
	sh, err := s.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), sh.ID)
	require.Equal(t, 1, repo.idCalls)

	// Битое значение перезаписано валидным.
	var cached models.Shipment
	require.NoError(t, json.Unmarshal(c.data["shipment:42:current"], &cached))
	require.Equal(t, uint64(42), cached.ID)
}

func TestGetByID_CacheErrorFallsThrough(t *testing.T) {
	repo := &fakeRepo{byID: map[uint64]*models.Shipment{42: {ID: 42}}}
	c := newMemCache()
	c.getErr = errors.New("redis down")

	s := New(repo, c, time.Minute)
	sh, err := s.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), sh.ID)
}

func TestGetByID_NoCacheConfigured(t *testing.T) {
	repo := &fakeRepo{byID: map[uint64]*models.Shipment{42: {ID: 42}}}
	s := New(repo, nil, 0)

	sh, err := s.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), sh.ID)
}

func TestGetByID_NotFound(t *testing.T) {
	s := New(&fakeRepo{}, newMemCache(), time.Minute)
	_, err := s.GetByID(context.Background(), 404)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestFindByTrackNumber_NotCached(t *testing.T) {
	repo := &fakeRepo{byTrack: map[string]*models.Shipment{"lp001": {ID: 42}}}
	c := newMemCache()
	s := New(repo, c, time.Minute)

	sh, err := s.FindByTrackNumber(context.Background(), "LP 001")
	require.NoError(t, err)
	require.Equal(t, uint64(42), sh.ID)
	require.Empty(t, c.data)
}

func TestInvalidate_DropsCachedValue(t *testing.T) {
	repo := &fakeRepo{byID: map[uint64]*models.Shipment{42: {ID: 42}}}
	c := newMemCache()
	s := New(repo, c, time.Minute)

	_, err := s.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.Contains(t, c.data, "shipment:42:current")

	require.NoError(t, s.Invalidate(context.Background(), 42))
	require.NotContains(t, c.data, "shipment:42:current")

	// Nil-кэш тоже валиден.
	require.NoError(t, New(repo, nil, 0).Invalidate(context.Background(), 42))
}
