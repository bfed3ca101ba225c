// Package rebook builds a new booking draft from a completed booking.
package rebook

import (
	"sync"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/cachex"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/readmodel"
)

// DraftBookingSelection is the in-progress selection a new booking is submitted from.
type DraftBookingSelection struct {
	Service  *model.Service  `json:"service"`
	Car      *model.Car      `json:"car"`
	Detailer *model.Detailer `json:"detailer"`
	Address  *model.Address  `json:"address"`
	// RebookedFrom is the booking the draft was copied from.
	RebookedFrom string `json:"rebooked_from,omitempty"`
}

// CanRebook is true only for completed bookings that had a detailer.
func CanRebook(item readmodel.BookingHistoryItem) bool {
	return item.Status == model.StatusCompleted && item.Detailer != nil
}

// Controller owns one user's draft.
type Controller struct {
	mu    sync.Mutex
	draft DraftBookingSelection
}

func NewController() *Controller {
	return &Controller{}
}

// PrepareRebook replaces the draft with the selections of item. Coordinates are not carried over.
func (c *Controller) PrepareRebook(item readmodel.BookingHistoryItem) (DraftBookingSelection, error) {
	if !CanRebook(item) {
		return DraftBookingSelection{}, apperr.Validation("only completed bookings with a detailer can be rebooked")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = DraftBookingSelection{}

	draft := DraftBookingSelection{RebookedFrom: item.ID}
	if item.Service != nil {
		s := *item.Service
		draft.Service = &s
	}
	if item.Car != nil {
		car := *item.Car
		draft.Car = &car
	}
	d := *item.Detailer
	if d.Specialties != nil {
		d.Specialties = append([]string(nil), d.Specialties...)
	}
	draft.Detailer = &d

	addr := item.Address
	addr.Latitude = nil
	addr.Longitude = nil
	draft.Address = &addr

	c.draft = draft
	return draft, nil
}

func (c *Controller) Draft() DraftBookingSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = DraftBookingSelection{}
}

// Controllers keeps one draft per user. Drafts of idle users are dropped.
type Controllers struct {
	users *cachex.Registry[*Controller]
}

func NewControllers(limits cachex.Limits) *Controllers {
	create := func(string) *Controller { return NewController() }
	return &Controllers{users: cachex.NewRegistry(limits, create, nil)}
}

func (cs *Controllers) For(userID string) *Controller {
	return cs.users.Get(userID)
}

func (cs *Controllers) Evict(userID string) {
	cs.users.Evict(userID)
}
