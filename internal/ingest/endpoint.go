package ingest

import "fmt"

const DefaultEndpoint = "https://bulk.meteostat.net/v2/"

// EndpointPath returns the bulk file path for a station relative to the
// endpoint root. Daily and hourly files with model data live under "full/".
func EndpointPath(granularity, stationID string, model bool) string {
	if model && (granularity == "daily" || granularity == "hourly") {
		return fmt.Sprintf("%s/full/%s.csv.gz", granularity, stationID)
	}
	return fmt.Sprintf("%s/%s.csv.gz", granularity, stationID)
}
