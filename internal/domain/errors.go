package domain

import "errors"

var (
	// ErrInvalidDate is returned when a period center or epoch cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrVariableNotFound is returned by sources when a requested variable is
	// absent from a file.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrGridMismatch is returned when a source file does not share the grid
	// of the first file of the run.
	ErrGridMismatch = errors.New("grid mismatch")

	// ErrBasinOutOfBounds is returned when the nearest basin center falls
	// outside the basin grid.
	ErrBasinOutOfBounds = errors.New("basin index out of bounds")

	// ErrBasinMismatch is returned when the basin grid does not have the
	// configured origin or spacing.
	ErrBasinMismatch = errors.New("basin grid mismatch")

	// ErrDuplicateID is returned when two location records share an id.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrNotText is returned when a text attribute holds a non-text value.
	ErrNotText = errors.New("attribute is not text")
)
