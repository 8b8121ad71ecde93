package bookmarks_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/BearBump/TrackShelf/internal/services/archive"
	"github.com/BearBump/TrackShelf/internal/services/bookmarks"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type UserRepository interface {
	CreateUser(ctx context.Context, phone string) (*models.User, error)
}

type SettingsRepository interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, st *models.Settings) error
}

type API struct {
	bookmarks *bookmarks.Service
	archive   *archive.Service
	users     UserRepository
	settings  SettingsRepository
}

func New(b *bookmarks.Service, a *archive.Service, users UserRepository, settings SettingsRepository) *API {
	return &API{bookmarks: b, archive: a, users: users, settings: settings}
}

func (a *API) Routes(r chi.Router) {
	r.Post("/users", a.createUser)
	r.Get("/users/{userID}/bookmarks", a.getBookmarks)
	r.Post("/users/{userID}/bookmarks", a.addBookmark)
	r.Delete("/users/{userID}/bookmarks/{trackNumber}", a.deleteBookmark)
	r.Get("/users/{userID}/archive", a.getArchive)
	r.Post("/confirm-receipt", a.confirmReceipt)
	r.Get("/settings", a.getSettings)
	r.Put("/settings", a.updateSettings)
}

func (a *API) getBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	page, err := a.bookmarks.BuildView(r.Context(), userID, pageParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type addBookmarkRequest struct {
	Description string `json:"description"`
	TrackNumber string `json:"trackNumber"`
}

type bookmarkResponse struct {
	TrackNumber string `json:"trackNumber"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

func (a *API) addBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req addBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := a.bookmarks.Add(r.Context(), userID, models.BookmarkCreateInput{
		Description: req.Description,
		TrackNumber: req.TrackNumber,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "track number bookmarked",
		"bookmark": bookmarkResponse{
			TrackNumber: b.TrackNumber,
			Description: b.Description,
			CreatedAt:   b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
	})
}

func (a *API) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := a.bookmarks.Delete(r.Context(), userID, chi.URLParam(r, "trackNumber")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "bookmark deleted")
}

func (a *API) getArchive(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	page, err := a.archive.BuildView(r.Context(), userID, pageParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type confirmReceiptRequest struct {
	Phone       string `json:"phone"`
	TrackNumber string `json:"trackNumber"`
}

func (a *API) confirmReceipt(w http.ResponseWriter, r *http.Request) {
	var req confirmReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.archive.ConfirmReceipt(r.Context(), req.Phone, req.TrackNumber); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "track received and archived")
}

type createUserRequest struct {
	Phone string `json:"phone"`
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		writeMessage(w, http.StatusBadRequest, "phone is required")
		return
	}
	u, err := a.users.CreateUser(r.Context(), req.Phone)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.ID, "phone": u.Phone})
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := a.settings.GetSettings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) updateSettings(w http.ResponseWriter, r *http.Request) {
	var st models.Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.settings.UpdateSettings(r.Context(), &st); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "settings updated")
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func pageParam(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	return page
}

// writeServiceError превращает ошибку сервиса в HTTP-ответ. NotFound и
// дубликат уходят клиенту как есть, всё остальное — generic 500 без
// внутренних деталей.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrDuplicate):
		writeMessage(w, http.StatusBadRequest, "bookmark with this track number already exists")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
