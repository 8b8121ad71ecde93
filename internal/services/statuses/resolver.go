package statuses

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/TrackShelf/internal/models"
)

type Repository interface {
	GetStatusesByIDs(ctx context.Context, ids []uint64) (map[uint64]*models.Status, error)
}

// Resolver превращает ссылки истории в человекочитаемые статусы.
// Не пишет, не падает и не теряет записи: удалённый или недоступный
// статус превращается в текст-заглушку.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

type Resolved struct {
	StatusID   uint64
	Date       time.Time
	StatusText string
	Code       string // пустой, если запись статуса удалена
}

func (r *Resolver) ResolveHistory(ctx context.Context, history []models.HistoryEntry) []Resolved {
	if len(history) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(history))
	seen := make(map[uint64]struct{}, len(history))
	for _, h := range history {
		if _, ok := seen[h.StatusID]; ok {
			continue
		}
		seen[h.StatusID] = struct{}{}
		ids = append(ids, h.StatusID)
	}

	sts, err := r.repo.GetStatusesByIDs(ctx, ids)
	if err != nil {
		slog.Warn("status lookup failed, degrading to sentinel", "error", err.Error())
		sts = nil
	}

	out := make([]Resolved, 0, len(history))
	for _, h := range history {
		res := Resolved{
			StatusID:   h.StatusID,
			Date:       h.Date,
			StatusText: models.UnknownStatusText,
		}
		if st, ok := sts[h.StatusID]; ok {
			res.StatusText = st.StatusText
			res.Code = st.Code
		}
		out = append(out, res)
	}
	return out
}

// ReadyForPickup проверяет готовность к выдаче по стабильному коду статуса,
// а не по отображаемому тексту: текст в справочнике могут отредактировать.
func ReadyForPickup(entries []Resolved) bool {
	for _, e := range entries {
		if e.Code == models.StatusCodeReadyForPickup {
			return true
		}
	}
	return false
}

func ToViews(entries []Resolved) []models.ResolvedHistoryEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]models.ResolvedHistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.ResolvedHistoryEntry{
			StatusID:   e.StatusID,
			Date:       e.Date,
			StatusText: e.StatusText,
		})
	}
	return out
}
