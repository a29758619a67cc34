package params

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn indicates a required numeric column is absent from the header.
	ErrMissingColumn = errors.New("params: missing column")

	// ErrDuplicateID indicates the same identifier appears twice in one table.
	ErrDuplicateID = errors.New("params: duplicate identifier")

	// ErrMissingID indicates an identifier expected by the network model has no row.
	ErrMissingID = errors.New("params: missing identifier")

	// ErrUnknownID indicates a row identifier the network model does not know.
	ErrUnknownID = errors.New("params: unknown identifier")

	// ErrMalformed indicates an unparsable or empty cell.
	ErrMalformed = errors.New("params: malformed value")
)

// DataLoadError reports a parameter table that could not be loaded or does
// not line up with the network model. It is fatal at startup.
type DataLoadError struct {
	Table string
	Path  string
	// Row is the 1-based data row, 0 when the failure is not tied to a row.
	Row int
	Err error
}

func (e *DataLoadError) Error() string {
	msg := "load " + e.Table
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	return msg + ": " + e.Err.Error()
}

func (e *DataLoadError) Unwrap() error { return e.Err }

func loadErr(table, path string, row int, err error) error {
	return &DataLoadError{Table: table, Path: path, Row: row, Err: err}
}
