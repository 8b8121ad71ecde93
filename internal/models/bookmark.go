package models

import (
	"strings"
	"time"
)

type User struct {
	ID        uint64
	Phone     string
	CreatedAt time.Time
}

// Bookmark — закладка пользователя на трек-номер. ShipmentID — это кэш
// резолва: nil не значит, что посылки нет, просто её ещё не нашли.
type Bookmark struct {
	ID          uint64
	UserID      uint64
	TrackNumber string
	Description string
	ShipmentID  *uint64
	CreatedAt   time.Time

	NextResolveAt    time.Time
	ResolveFailCount int32
}

// ArchiveEntry — неизменяемый снимок закладки после подтверждения получения.
type ArchiveEntry struct {
	ID          uint64
	UserID      uint64
	Description string
	TrackNumber string
	History     []HistoryEntry
	ReceivedAt  time.Time
}

type BookmarkCreateInput struct {
	Description string
	TrackNumber string
}

// NormalizeTrackNumber приводит трек-номер к канонической форме для
// сравнения: без пробельных символов, в нижнем регистре. Поиск посылки
// по трек-номеру — точное совпадение нормализованных форм.
func NormalizeTrackNumber(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
