package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
)

type userSlotKey struct{}

// withUserSlot lets inner auth middleware report the caller back to the access log.
func withUserSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, userSlotKey{}, slot)
}

// SetLoggedUser records the authenticated user for the access log line of this request.
func SetLoggedUser(ctx context.Context, userID string) {
	if slot, ok := ctx.Value(userSlotKey{}).(*string); ok && slot != nil {
		*slot = userID
	}
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps an apperr kind to its status code and a {"error","message"} body.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperr.HTTPStatus(err), map[string]string{
		"error":   apperr.KindOf(err).String(),
		"message": err.Error(),
	})
}
