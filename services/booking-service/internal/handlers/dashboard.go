package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/httpx"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/dashboard"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

// DashboardHandler serves the detailer and organization dashboard. Permission checks live in
// dashboard.Service; this layer only parses and validates input.
type DashboardHandler struct {
	svc    *dashboard.Service
	logger *slog.Logger
}

func NewDashboardHandler(svc *dashboard.Service, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger}
}

func (h *DashboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	m, err := h.svc.Membership(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "membership lookup failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}

// Bookings lists organization bookings:
// ?status=paid,accepted&date_from=YYYY-MM-DD&date_to=YYYY-MM-DD&limit=&offset=
func (h *DashboardHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	f, msg := parseFilter(r)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	list, err := h.svc.ListBookings(r.Context(), p.UserID, f)
	if err != nil {
		h.fail(w, r, "dashboard bookings failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func parseFilter(r *http.Request) (model.BookingFilter, string) {
	q := r.URL.Query()
	var f model.BookingFilter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := model.BookingStatus(strings.TrimSpace(part))
			if !s.Valid() {
				return f, "invalid status"
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	for key, dst := range map[string]**time.Time{"date_from": &f.DateFrom, "date_to": &f.DateTo} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, "invalid " + key
		}
		*dst = &d
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return f, "date_to must not be before date_from"
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, "invalid " + key
		}
		*dst = n
	}
	return f, ""
}

type assignRequest struct {
	BookingID  string `json:"booking_id"`
	DetailerID string `json:"detailer_id"`
}

func (h *DashboardHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if !validID(req.BookingID) || !validID(req.DetailerID) {
		http.Error(w, "booking_id and detailer_id are required", http.StatusBadRequest)
		return
	}
	if err := h.svc.AssignDetailer(r.Context(), p.UserID, req.BookingID, req.DetailerID); err != nil {
		h.fail(w, r, "assign detailer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

func (h *DashboardHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	status := model.BookingStatus(strings.TrimSpace(req.Status))
	if !validID(req.BookingID) || !status.Valid() {
		http.Error(w, "booking_id and a valid status are required", http.StatusBadRequest)
		return
	}
	if err := h.svc.UpdateStatus(r.Context(), p.UserID, req.BookingID, status); err != nil {
		h.fail(w, r, "status update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type acceptRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *DashboardHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if !validID(req.BookingID) {
		http.Error(w, "invalid booking_id", http.StatusBadRequest)
		return
	}
	if err := h.svc.AcceptBooking(r.Context(), p.UserID, req.BookingID); err != nil {
		h.fail(w, r, "accept booking failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) Available(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	list, err := h.svc.AvailableBookings(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "available bookings failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func (h *DashboardHandler) Detailers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	list, err := h.svc.Detailers(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "dashboard detailers failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"detailers": list})
}

type availabilityRequest struct {
	Windows []model.AvailabilityWindow `json:"windows"`
}

func (h *DashboardHandler) Availability(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		windows, err := h.svc.Availability(r.Context(), p.UserID)
		if err != nil {
			h.fail(w, r, "availability read failed", err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"windows": windows})
	case http.MethodPut:
		var req availabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if err := h.svc.SetAvailability(r.Context(), p.UserID, req.Windows); err != nil {
			h.fail(w, r, "availability update failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	stats, err := h.svc.Stats(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "dashboard stats failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(stats)
}

type memberRequest struct {
	Email     string `json:"email,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Members handles /api/v1/dashboard/members/{invite,role,remove}.
func (h *DashboardHandler) Members(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	role := model.OrganizationRole(strings.TrimSpace(req.Role))

	var err error
	switch action := strings.TrimPrefix(r.URL.Path, "/api/v1/dashboard/members/"); action {
	case "invite":
		err = h.svc.InviteMember(r.Context(), p.UserID, strings.TrimSpace(req.Email), role)
	case "role":
		if !validID(req.ProfileID) {
			http.Error(w, "invalid profile_id", http.StatusBadRequest)
			return
		}
		err = h.svc.UpdateMemberRole(r.Context(), p.UserID, req.ProfileID, role)
	case "remove":
		if !validID(req.ProfileID) {
			http.Error(w, "invalid profile_id", http.StatusBadRequest)
			return
		}
		err = h.svc.RemoveMember(r.Context(), p.UserID, req.ProfileID)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, "member action failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logFailure(h.logger, r, msg, err)
	httpx.WriteError(w, err)
}
