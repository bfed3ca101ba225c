package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

// Remote procedures are called positionally in the order the backend declares their parameters.

func (b *Backend) GetDetailerAvailability(ctx context.Context, detailerID string) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	err := b.inSession(ctx, "rpc.get_detailer_availability", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT day_of_week, start_time::text, end_time::text, is_active
			FROM get_detailer_availability($1)
		`, detailerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanWindows(rows, false)
		return err
	})
	return out, err
}

// SetDetailerAvailability writes every window in one transaction.
func (b *Backend) SetDetailerAvailability(ctx context.Context, windows []model.AvailabilityWindow) error {
	return b.inSession(ctx, "rpc.set_detailer_availability", func(ctx context.Context, tx pgx.Tx) error {
		for _, w := range windows {
			if _, err := tx.Exec(ctx, `SELECT set_detailer_availability($1, $2::time, $3::time, $4)`,
				w.DayOfWeek, w.Start.String(), w.End.String(), w.IsActive); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) GetDetailerByProfile(ctx context.Context, profileID string) (model.Detailer, error) {
	var d model.Detailer
	err := b.inSession(ctx, "rpc.get_detailer_by_profile", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := rpcJSON(ctx, tx, "get_detailer_by_profile", `SELECT to_jsonb(r) FROM get_detailer_by_profile($1) r`, profileID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return pgx.ErrNoRows
		}
		return json.Unmarshal(rows[0], &d)
	})
	if isNoRows(err) || (err == nil && d.ID == "") {
		return model.Detailer{}, apperr.NotFound("detailer profile not found")
	}
	return d, err
}

func (b *Backend) AssignDetailer(ctx context.Context, bookingID, detailerID string, events ...outbox.Event) error {
	return b.inSession(ctx, "rpc.assign_detailer_to_booking", func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT assign_detailer_to_booking($1, $2)`, bookingID, detailerID); err != nil {
			return err
		}
		return b.writeEvents(ctx, tx, events)
	})
}

func (b *Backend) UpdateBookingStatus(ctx context.Context, bookingID string, status model.BookingStatus, events ...outbox.Event) error {
	return b.inSession(ctx, "rpc.update_booking_status", func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT update_booking_status($1, $2)`, bookingID, string(status)); err != nil {
			return err
		}
		return b.writeEvents(ctx, tx, events)
	})
}

func (b *Backend) AcceptBooking(ctx context.Context, bookingID string, events ...outbox.Event) error {
	return b.inSession(ctx, "rpc.accept_booking", func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT accept_booking($1)`, bookingID); err != nil {
			return err
		}
		return b.writeEvents(ctx, tx, events)
	})
}

// AllBookings calls get_all_bookings once with the filter's page, or once per status when
// several statuses are requested.
func (b *Backend) AllBookings(ctx context.Context, f model.BookingFilter) ([]model.BookingListing, error) {
	var out []model.BookingListing
	err := b.inSession(ctx, "rpc.get_all_bookings", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		out, err = pageListings(f, func(status *string, limit, offset int) ([]model.BookingListing, error) {
			rows, err := rpcJSON(ctx, tx, "get_all_bookings",
				`SELECT to_jsonb(r) FROM get_all_bookings($1, $2::date, $3::date, $4, $5) r`,
				status, dateArg(f.DateFrom), dateArg(f.DateTo), limit, offset)
			if err != nil {
				return nil, err
			}
			page := make([]model.BookingListing, 0, len(rows))
			for _, raw := range rows {
				bk, err := decodeListing(raw)
				if err != nil {
					return nil, err
				}
				page = append(page, bk)
			}
			return page, nil
		})
		return err
	})
	return out, err
}

type listingFetch func(status *string, limit, offset int) ([]model.BookingListing, error)

// pageListings applies the filter's page to one or more statuses. With several statuses each one
// is read from the start up to offset+limit rows, the results are merged newest first, and the
// page is cut once from the merged list.
func pageListings(f model.BookingFilter, fetch listingFetch) ([]model.BookingListing, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	seen := make(map[model.BookingStatus]bool, len(f.Statuses))
	var statuses []*string
	for _, st := range f.Statuses {
		if seen[st] {
			continue
		}
		seen[st] = true
		v := string(st)
		statuses = append(statuses, &v)
	}
	switch len(statuses) {
	case 0:
		return fetch(nil, f.Limit, f.Offset)
	case 1:
		return fetch(statuses[0], f.Limit, f.Offset)
	}

	var merged []model.BookingListing
	for _, st := range statuses {
		rows, err := fetch(st, f.Offset+f.Limit, 0)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].CreatedAt, merged[j].CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return merged[i].ID < merged[j].ID
	})
	if f.Offset >= len(merged) {
		return nil, nil
	}
	return merged[f.Offset:min(f.Offset+f.Limit, len(merged))], nil
}

func (b *Backend) AllDetailers(ctx context.Context) ([]model.Detailer, error) {
	var out []model.Detailer
	err := b.inSession(ctx, "rpc.get_all_detailers", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := rpcJSON(ctx, tx, "get_all_detailers", `SELECT to_jsonb(r) FROM get_all_detailers() r`)
		if err != nil {
			return err
		}
		for _, raw := range rows {
			var d model.Detailer
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// DashboardStats returns the backend's stats object as-is.
func (b *Backend) DashboardStats(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := b.inSession(ctx, "rpc.get_dashboard_stats", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := rpcJSON(ctx, tx, "get_dashboard_stats", `SELECT to_jsonb(r) FROM get_dashboard_stats() r`)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			out = json.RawMessage(`{}`)
			return nil
		}
		out = rows[0]
		return nil
	})
	return out, err
}

// UserOrganization returns nil when the profile belongs to no organization.
func (b *Backend) UserOrganization(ctx context.Context, profileID string) (*model.Organization, error) {
	var org model.Organization
	err := b.inSession(ctx, "rpc.get_user_organization", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := rpcJSON(ctx, tx, "get_user_organization", `SELECT to_jsonb(r) FROM get_user_organization($1) r`, profileID)
		if err != nil || len(rows) == 0 {
			return err
		}
		return json.Unmarshal(rows[0], &org)
	})
	if err != nil {
		return nil, err
	}
	if org.ID == "" {
		return nil, nil
	}
	return &org, nil
}

// UserRoleInOrganization returns the raw role string, or "" when the profile has none.
func (b *Backend) UserRoleInOrganization(ctx context.Context, profileID, organizationID string) (string, error) {
	var role *string
	err := b.inSession(ctx, "rpc.get_user_role_in_organization", func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT get_user_role_in_organization($1, $2)::text`, profileID, organizationID).Scan(&role)
	})
	if err != nil || role == nil {
		return "", err
	}
	return *role, nil
}

func (b *Backend) InviteMember(ctx context.Context, organizationID, email string, role model.OrganizationRole) error {
	return b.inSession(ctx, "rpc.invite_member", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT invite_member($1, $2, $3)`, organizationID, email, string(role))
		return err
	})
}

func (b *Backend) UpdateMemberRole(ctx context.Context, organizationID, profileID string, role model.OrganizationRole) error {
	return b.inSession(ctx, "rpc.update_member_role", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT update_member_role($1, $2, $3)`, organizationID, profileID, string(role))
		return err
	})
}

func (b *Backend) RemoveMember(ctx context.Context, organizationID, profileID string) error {
	return b.inSession(ctx, "rpc.remove_member", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT remove_member($1, $2)`, organizationID, profileID)
		return err
	})
}

// rpcJSON collects one jsonb value per row. A function returning a scalar comes back wrapped
// as {"<fn>": value}; that wrapper is removed.
func rpcJSON(ctx context.Context, tx pgx.Tx, fn, sql string, args ...any) ([]json.RawMessage, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		out = append(out, unwrapScalar(fn, raw))
	}
	return out, rows.Err()
}

func unwrapScalar(fn string, raw []byte) json.RawMessage {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped) == 1 {
		if inner, ok := wrapped[fn]; ok {
			return inner
		}
	}
	return raw
}

type listingJSON struct {
	ID                 string   `json:"id"`
	ReceiptID          string   `json:"receipt_id"`
	UserID             string   `json:"user_id"`
	ServiceID          string   `json:"service_id"`
	DetailerID         string   `json:"detailer_id"`
	CarID              string   `json:"car_id"`
	Status             string   `json:"status"`
	ScheduledDate      string   `json:"scheduled_date"`
	ScheduledTimeStart string   `json:"scheduled_time_start"`
	ScheduledTimeEnd   string   `json:"scheduled_time_end"`
	ServicePrice       float64  `json:"service_price"`
	AddonsTotal        float64  `json:"addons_total"`
	TaxAmount          float64  `json:"tax_amount"`
	TotalAmount        float64  `json:"total_amount"`
	AddressLine1       string   `json:"address_line1"`
	AddressLine2       string   `json:"address_line2"`
	City               string   `json:"city"`
	Province           string   `json:"province"`
	PostalCode         string   `json:"postal_code"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	CustomerName       string   `json:"customer_name"`
	ServiceName        string   `json:"service_name"`
	DetailerName       string   `json:"detailer_name"`
	CreatedAt          string   `json:"created_at"`
}

func decodeListing(raw []byte) (model.BookingListing, error) {
	var j listingJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return model.BookingListing{}, err
	}
	bk := model.Booking{
		ID:           j.ID,
		ReceiptCode:  j.ReceiptID,
		UserID:       j.UserID,
		ServiceID:    j.ServiceID,
		DetailerID:   j.DetailerID,
		CarID:        j.CarID,
		Status:       model.BookingStatus(j.Status),
		ServicePrice: j.ServicePrice,
		AddonsTotal:  j.AddonsTotal,
		TaxAmount:    j.TaxAmount,
		TotalAmount:  j.TotalAmount,
		Address: model.Address{
			Line1: j.AddressLine1, Line2: j.AddressLine2, City: j.City,
			Province: j.Province, PostalCode: j.PostalCode,
			Latitude: j.Latitude, Longitude: j.Longitude,
		},
	}
	if j.ScheduledDate != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(j.ScheduledDate))
		if err != nil {
			return model.BookingListing{}, fmt.Errorf("booking %s: scheduled_date: %w", j.ID, err)
		}
		bk.ScheduledDate = &d
	}
	var err error
	if bk.ScheduledTimeStart, err = optionalTime(&j.ScheduledTimeStart); err != nil {
		return model.BookingListing{}, fmt.Errorf("booking %s: start: %w", j.ID, err)
	}
	if bk.ScheduledTimeEnd, err = optionalTime(&j.ScheduledTimeEnd); err != nil {
		return model.BookingListing{}, fmt.Errorf("booking %s: end: %w", j.ID, err)
	}
	if j.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, j.CreatedAt); err == nil {
			bk.CreatedAt = ts
		}
	}
	return model.BookingListing{
		Booking:      bk,
		CustomerName: j.CustomerName,
		ServiceName:  j.ServiceName,
		DetailerName: j.DetailerName,
	}, nil
}

func dateArg(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
