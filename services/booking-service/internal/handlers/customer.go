package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/httpx"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/availability"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/catalog"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/favorites"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/readmodel"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/rebook"
)

type HistoryStore interface {
	Refresh(ctx context.Context, userID string) ([]readmodel.BookingHistoryItem, error)
	Find(ctx context.Context, userID, bookingID string) (readmodel.BookingHistoryItem, error)
}

type CatalogReader interface {
	Get(ctx context.Context) (catalog.Snapshot, error)
}

type DirectoryReader interface {
	Detailers(ctx context.Context) ([]model.Detailer, error)
	AvailabilityWindows(ctx context.Context, detailerID string) ([]model.AvailabilityWindow, error)
	BusyBookings(ctx context.Context, detailerID string, day time.Time) ([]model.Booking, error)
	CarsForUser(ctx context.Context, userID string) ([]model.Car, error)
}

// CustomerHandler serves the customer app.
type CustomerHandler struct {
	history   HistoryStore
	favorites *favorites.Managers
	drafts    *rebook.Controllers
	catalog   CatalogReader
	directory DirectoryReader
	logger    *slog.Logger
	now       func() time.Time
}

func NewCustomerHandler(history HistoryStore, favs *favorites.Managers, drafts *rebook.Controllers, cat CatalogReader, dir DirectoryReader, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		history:   history,
		favorites: favs,
		drafts:    drafts,
		catalog:   cat,
		directory: dir,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *CustomerHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	items, err := h.history.Refresh(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "booking history failed", err)
		return
	}
	type historyItem struct {
		readmodel.BookingHistoryItem
		CanRebook bool `json:"can_rebook"`
	}
	out := make([]historyItem, 0, len(items))
	for _, item := range items {
		out = append(out, historyItem{BookingHistoryItem: item, CanRebook: rebook.CanRebook(item)})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

type rebookRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *CustomerHandler) Rebook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req rebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if !validID(req.BookingID) {
		http.Error(w, "invalid booking_id", http.StatusBadRequest)
		return
	}

	item, err := h.history.Find(r.Context(), p.UserID, req.BookingID)
	if err != nil {
		h.fail(w, r, "rebook lookup failed", err)
		return
	}
	draft, err := h.drafts.For(p.UserID).PrepareRebook(item)
	if err != nil {
		h.fail(w, r, "rebook rejected", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, draft)
}

func (h *CustomerHandler) Draft(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		httpx.WriteJSON(w, http.StatusOK, h.drafts.For(p.UserID).Draft())
	case http.MethodDelete:
		h.drafts.For(p.UserID).Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CustomerHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	m := h.favorites.For(p.UserID)
	if err := m.Load(r.Context()); err != nil {
		h.fail(w, r, "favorites load failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"detailer_ids": m.IDs(),
		"favorites":    m.Details(),
	})
}

type toggleRequest struct {
	DetailerID string `json:"detailer_id"`
}

func (h *CustomerHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if !validID(req.DetailerID) {
		http.Error(w, "invalid detailer_id", http.StatusBadRequest)
		return
	}

	on, err := h.favorites.For(p.UserID).Toggle(r.Context(), req.DetailerID)
	if err != nil {
		h.fail(w, r, "favorite toggle failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"detailer_id": req.DetailerID,
		"favorite":    on,
	})
}

func (h *CustomerHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, err := h.catalog.Get(r.Context())
	if err != nil {
		h.fail(w, r, "catalog read failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

func (h *CustomerHandler) Detailers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := h.directory.Detailers(r.Context())
	if err != nil {
		h.fail(w, r, "detailer list failed", apperr.Fetch(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"detailers": list})
}

func (h *CustomerHandler) Cars(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	cars, err := h.directory.CarsForUser(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "car list failed", apperr.Fetch(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"cars": cars})
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Slots lists free start times for a detailer on a date:
// ?detailer_id=&date=YYYY-MM-DD[&duration_minutes=&step_minutes=&tz=]
func (h *CustomerHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	detailerID := strings.TrimSpace(q.Get("detailer_id"))
	if !validID(detailerID) {
		http.Error(w, "invalid detailer_id", http.StatusBadRequest)
		return
	}
	loc := time.UTC
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			http.Error(w, "invalid tz", http.StatusBadRequest)
			return
		}
		loc = l
	}
	day, err := time.ParseInLocation("2006-01-02", q.Get("date"), loc)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	duration, ok := minutesParam(q.Get("duration_minutes"), 60)
	if !ok {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}
	step, ok := minutesParam(q.Get("step_minutes"), 30)
	if !ok {
		http.Error(w, "invalid step_minutes", http.StatusBadRequest)
		return
	}

	windows, err := h.directory.AvailabilityWindows(r.Context(), detailerID)
	if err != nil {
		h.fail(w, r, "availability read failed", apperr.Fetch(err))
		return
	}
	busy, err := h.directory.BusyBookings(r.Context(), detailerID, day)
	if err != nil {
		h.fail(w, r, "busy bookings read failed", apperr.Fetch(err))
		return
	}

	starts := availability.SlotsForDay(day, windows, busy, duration, step, h.now().In(loc))
	out := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		out = append(out, slotItem{StartTime: s.Format(time.RFC3339), EndTime: s.Add(duration).Format(time.RFC3339)})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"slots": out})
}

// fail writes err and, on session expiry, drops every cache held for the caller.
func (h *CustomerHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if apperr.KindOf(err) == apperr.KindSessionExpired {
		if p, ok := auth.PrincipalFromContext(r.Context()); ok {
			h.favorites.Evict(p.UserID)
			h.drafts.Evict(p.UserID)
		}
	}
	logFailure(h.logger, r, msg, err)
	httpx.WriteError(w, err)
}

func logFailure(logger *slog.Logger, r *http.Request, msg string, err error) {
	level := slog.LevelWarn
	if apperr.HTTPStatus(err) >= 500 {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, msg,
		"request_id", httpx.RequestIDFromContext(r.Context()),
		"kind", apperr.KindOf(err).String(),
		"err", err,
	)
}

func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

func minutesParam(raw string, fallback int) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Duration(fallback) * time.Minute, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 24*60 {
		return 0, false
	}
	return time.Duration(n) * time.Minute, true
}
