package model

import (
	"math"
	"time"
)

type BookingStatus string

const (
	StatusPending         BookingStatus = "pending"
	StatusRequiresPayment BookingStatus = "requires_payment"
	StatusPaid            BookingStatus = "paid"
	StatusOffered         BookingStatus = "offered"
	StatusAccepted        BookingStatus = "accepted"
	StatusInProgress      BookingStatus = "in_progress"
	StatusCompleted       BookingStatus = "completed"
	StatusCancelled       BookingStatus = "cancelled"
	StatusNoShow          BookingStatus = "no_show"
)

var allStatuses = []BookingStatus{
	StatusPending,
	StatusRequiresPayment,
	StatusPaid,
	StatusOffered,
	StatusAccepted,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

func AllStatuses() []BookingStatus {
	out := make([]BookingStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s BookingStatus) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Address struct {
	Line1      string   `json:"address_line1"`
	Line2      string   `json:"address_line2,omitempty"`
	City       string   `json:"city"`
	Province   string   `json:"province"`
	PostalCode string   `json:"postal_code"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

type Booking struct {
	ID                 string        `json:"id"`
	ReceiptCode        string        `json:"receipt_id"`
	UserID             string        `json:"user_id"`
	ServiceID          string        `json:"service_id,omitempty"`
	DetailerID         string        `json:"detailer_id,omitempty"`
	CarID              string        `json:"car_id,omitempty"`
	Status             BookingStatus `json:"status"`
	ScheduledDate      *time.Time    `json:"scheduled_date,omitempty"`
	ScheduledTimeStart *TimeOfDay    `json:"scheduled_time_start,omitempty"`
	ScheduledTimeEnd   *TimeOfDay    `json:"scheduled_time_end,omitempty"`
	ServicePrice       float64       `json:"service_price"`
	AddonsTotal        float64       `json:"addons_total"`
	TaxAmount          float64       `json:"tax_amount"`
	TotalAmount        float64       `json:"total_amount"`
	Address            Address       `json:"address"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// PriceConsistent reports whether the total matches its parts to within a cent.
func (b Booking) PriceConsistent() bool {
	return PriceConsistent(b.ServicePrice, b.AddonsTotal, b.TaxAmount, b.TotalAmount)
}

func PriceConsistent(service, addons, tax, total float64) bool {
	if service < 0 || addons < 0 || tax < 0 || total < 0 {
		return false
	}
	return math.Abs(total-(service+addons+tax)) < 0.01
}

// ToCents rounds a major-unit amount to integer cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// BookingListing is a booking as returned to dashboard views, with display names resolved.
type BookingListing struct {
	Booking
	CustomerName string `json:"customer_name,omitempty"`
	ServiceName  string `json:"service_name,omitempty"`
	DetailerName string `json:"detailer_name,omitempty"`
}

// BookingFilter narrows dashboard booking listings. Zero values mean "no filter".
type BookingFilter struct {
	Statuses []BookingStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}
