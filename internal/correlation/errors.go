package correlation

import (
	"database/sql"
	"errors"
)

var (
	// ErrInvalidRequest marks a callback event missing its required token.
	ErrInvalidRequest = errors.New("token is required")

	// ErrUnknownToken marks a token with no matching injection. Not fatal
	// to the service; the event is rejected with a not-found outcome.
	ErrUnknownToken = errors.New("no injection found for token")
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
