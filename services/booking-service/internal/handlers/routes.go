package handlers

import "net/http"

// Register mounts the booking API on mux. The caller wraps mux with auth.
func Register(mux *http.ServeMux, c *CustomerHandler, d *DashboardHandler) {
	mux.HandleFunc("/api/v1/bookings/history", c.History)
	mux.HandleFunc("/api/v1/bookings/rebook", c.Rebook)
	mux.HandleFunc("/api/v1/bookings/draft", c.Draft)
	mux.HandleFunc("/api/v1/favorites", c.Favorites)
	mux.HandleFunc("/api/v1/favorites/toggle", c.ToggleFavorite)
	mux.HandleFunc("/api/v1/catalog", c.Catalog)
	mux.HandleFunc("/api/v1/cars", c.Cars)
	mux.HandleFunc("/api/v1/detailers", c.Detailers)
	mux.HandleFunc("/api/v1/detailers/slots", c.Slots)

	mux.HandleFunc("/api/v1/dashboard/me", d.Me)
	mux.HandleFunc("/api/v1/dashboard/bookings", d.Bookings)
	mux.HandleFunc("/api/v1/dashboard/bookings/assign", d.Assign)
	mux.HandleFunc("/api/v1/dashboard/bookings/status", d.Status)
	mux.HandleFunc("/api/v1/dashboard/bookings/accept", d.Accept)
	mux.HandleFunc("/api/v1/dashboard/available", d.Available)
	mux.HandleFunc("/api/v1/dashboard/detailers", d.Detailers)
	mux.HandleFunc("/api/v1/dashboard/availability", d.Availability)
	mux.HandleFunc("/api/v1/dashboard/stats", d.Stats)
	mux.HandleFunc("/api/v1/dashboard/members/", d.Members)
}
