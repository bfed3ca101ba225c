// Package readmodel turns joined booking rows into typed history items.
package readmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

// RawBookingRow is one bookings row as read from the backend with its service, detailer and car
// embedded as loosely typed JSON objects.
type RawBookingRow struct {
	ID                 string
	ReceiptCode        string
	UserID             string
	ServiceID          *string
	DetailerID         *string
	CarID              *string
	Status             string
	ScheduledDate      *time.Time
	ScheduledTimeStart *string
	ScheduledTimeEnd   *string
	ServicePrice       float64
	AddonsTotal        float64
	TaxAmount          float64
	TotalAmount        float64
	AddressLine1       string
	AddressLine2       *string
	City               string
	Province           string
	PostalCode         string
	Latitude           *float64
	Longitude          *float64
	CompletedAt        *time.Time
	CreatedAt          time.Time

	Service  []byte
	Detailer []byte
	Car      []byte
}

type BookingHistoryItem struct {
	model.Booking
	Service  *model.Service  `json:"service"`
	Detailer *model.Detailer `json:"detailer"`
	Car      *model.Car      `json:"car"`
}

// Normalize is deterministic: the same row always yields the same item.
func Normalize(raw RawBookingRow) (BookingHistoryItem, error) {
	item := BookingHistoryItem{Booking: model.Booking{
		ID:            raw.ID,
		ReceiptCode:   raw.ReceiptCode,
		UserID:        raw.UserID,
		ServiceID:     deref(raw.ServiceID),
		DetailerID:    deref(raw.DetailerID),
		CarID:         deref(raw.CarID),
		Status:        model.BookingStatus(raw.Status),
		ScheduledDate: raw.ScheduledDate,
		ServicePrice:  raw.ServicePrice,
		AddonsTotal:   raw.AddonsTotal,
		TaxAmount:     raw.TaxAmount,
		TotalAmount:   raw.TotalAmount,
		Address: model.Address{
			Line1:      raw.AddressLine1,
			Line2:      deref(raw.AddressLine2),
			City:       raw.City,
			Province:   raw.Province,
			PostalCode: raw.PostalCode,
			Latitude:   raw.Latitude,
			Longitude:  raw.Longitude,
		},
		CompletedAt: raw.CompletedAt,
		CreatedAt:   raw.CreatedAt,
	}}

	var err error
	if item.ScheduledTimeStart, err = parseTime(raw.ScheduledTimeStart); err != nil {
		return BookingHistoryItem{}, fmt.Errorf("booking %s: start: %w", raw.ID, err)
	}
	if item.ScheduledTimeEnd, err = parseTime(raw.ScheduledTimeEnd); err != nil {
		return BookingHistoryItem{}, fmt.Errorf("booking %s: end: %w", raw.ID, err)
	}

	var svc rawService
	if ok, err := decodeEmbed(raw.Service, &svc); err != nil {
		return BookingHistoryItem{}, fmt.Errorf("booking %s: service: %w", raw.ID, err)
	} else if ok {
		item.Service = &model.Service{
			ID:              svc.ID,
			Name:            svc.Name,
			Description:     svc.Description,
			Price:           float64(svc.Price),
			DurationMinutes: int(svc.DurationMinutes),
			IsActive:        svc.IsActive,
		}
	}

	var det rawDetailer
	if ok, err := decodeEmbed(raw.Detailer, &det); err != nil {
		return BookingHistoryItem{}, fmt.Errorf("booking %s: detailer: %w", raw.ID, err)
	} else if ok {
		item.Detailer = &model.Detailer{
			ID:              det.ID,
			FullName:        det.FullName,
			AvatarURL:       det.AvatarURL,
			Rating:          float64(det.Rating),
			ReviewCount:     int(det.ReviewCount),
			YearsExperience: int(det.YearsExperience),
			IsActive:        det.IsActive,
			Bio:             det.Bio,
			Specialties:     det.Specialties,
			OrganizationID:  det.OrganizationID,
			ProfileID:       det.ProfileID,
		}
	}

	var car rawCar
	if ok, err := decodeEmbed(raw.Car, &car); err != nil {
		return BookingHistoryItem{}, fmt.Errorf("booking %s: car: %w", raw.ID, err)
	} else if ok {
		item.Car = &model.Car{
			ID:           car.ID,
			Make:         car.Make,
			Model:        car.Model,
			Year:         int(car.Year),
			LicensePlate: car.LicensePlate,
			Color:        car.Color,
		}
	}

	return item, nil
}

type rawService struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           number `json:"price"`
	DurationMinutes number `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}

type rawDetailer struct {
	ID              string   `json:"id"`
	FullName        string   `json:"full_name"`
	AvatarURL       string   `json:"avatar_url"`
	Rating          number   `json:"rating"`
	ReviewCount     number   `json:"review_count"`
	YearsExperience number   `json:"years_experience"`
	IsActive        bool     `json:"is_active"`
	Bio             string   `json:"bio"`
	Specialties     []string `json:"specialties"`
	OrganizationID  string   `json:"organization_id"`
	ProfileID       string   `json:"profile_id"`
}

type rawCar struct {
	ID           string `json:"id"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         number `json:"year"`
	LicensePlate string `json:"license_plate"`
	Color        string `json:"color"`
}

// number accepts a JSON number, a numeric string or null.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = number(v)
	return nil
}

func decodeEmbed(raw []byte, dst any) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func parseTime(s *string) (*model.TimeOfDay, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := model.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
