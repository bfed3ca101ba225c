package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	cause := errors.New("JWT expired")
	err := fmt.Errorf("load history: %w", SessionExpired(cause))

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatal("expected session expired kind")
	}
	if errors.Is(err, ErrFetchFailed) {
		t.Fatal("did not expect fetch failed kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to stay reachable")
	}
}

func TestWrapKeepsMessageVerbatim(t *testing.T) {
	err := FetchFailed(errors.New(`relation "bookings" does not exist`))
	if err.Error() != `relation "bookings" does not exist` {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		SessionExpired(nil):                http.StatusUnauthorized,
		PermissionDenied("nope"):           http.StatusForbidden,
		Validation("amount mismatch"):      http.StatusBadRequest,
		NotFound("booking not found"):      http.StatusNotFound,
		MutationFailed(errors.New("boom")): http.StatusBadGateway,
		errors.New("plain"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}

func TestFetchAndMutationKeepExistingKind(t *testing.T) {
	expired := SessionExpired(errors.New("JWT expired"))
	if Fetch(expired) != error(expired) || Mutation(expired) != error(expired) {
		t.Fatal("classified errors must pass through")
	}
	if KindOf(Fetch(errors.New("x"))) != KindFetchFailed {
		t.Fatal("expected fetch failed")
	}
	if KindOf(Mutation(errors.New("x"))) != KindMutationFailed {
		t.Fatal("expected mutation failed")
	}
	if Fetch(nil) != nil || Mutation(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
