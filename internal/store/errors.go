package store

import (
	"database/sql"
	"errors"
)

// nilOnNoRows converts sql.ErrNoRows into a nil error so callers can
// treat "not found" as (nil, nil) rather than inspecting a sentinel.
// Any other error is returned unchanged so it still propagates.
func nilOnNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
