package storage

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/peeyushmeher/cleanswift/libs/apperr"
)

const (
	codeUniqueViolation      = "23505"
	codeInvalidAuthorization = "28000"
	codeInvalidPassword      = "28P01"
)

// sessionMarkers are substrings the backend uses when a caller's token is no longer usable.
var sessionMarkers = []string{
	"jwt expired",
	"invalid jwt",
	"jwt malformed",
	"invalid refresh token",
	"refresh token not found",
	"refresh_token_not_found",
	"no authenticated session",
}

// classify marks session failures as apperr.KindSessionExpired and passes everything else
// through for the caller to wrap.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	if IsSessionError(err) {
		return apperr.SessionExpired(err)
	}
	return err
}

func IsSessionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == codeInvalidAuthorization || pgErr.Code == codeInvalidPassword {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range sessionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
