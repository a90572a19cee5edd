package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound         = errors.New("database: not found")
	ErrConflict         = errors.New("database: already exists")
	ErrInvalidReference = errors.New("database: referenced row does not exist")
)

const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// mapError translates driver errors into the package's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	switch pqCode(err) {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	return err
}
