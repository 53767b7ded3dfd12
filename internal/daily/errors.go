package daily

import (
	"errors"
	"fmt"

	"github.com/lox/meteodaily/internal/ingest"
)

var (
	// ErrDataUnavailable means neither the cache nor the remote endpoint
	// produced a table for a station.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrSchemaInvalid means fetched rows failed parsing or validation.
	// Such rows are never cached.
	ErrSchemaInvalid = ingest.ErrSchemaInvalid

	// ErrMetadataMissing means point resolution was asked to weigh a
	// station it has no score or elevation for.
	ErrMetadataMissing = errors.New("station metadata missing")
)

// StationLoadError attributes a load failure to a station.
type StationLoadError struct {
	StationID string
	Err       error
}

func (e *StationLoadError) Error() string {
	return fmt.Sprintf("load station %s: %v", e.StationID, e.Err)
}

func (e *StationLoadError) Unwrap() error { return e.Err }
