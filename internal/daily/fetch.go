package daily

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/lox/meteodaily/internal/timeseries"
)

// LoadFunc loads one station's table.
type LoadFunc func(ctx context.Context, stationID string) (*timeseries.Table, error)

type FetchOptions struct {
	// Parallel bounds concurrent loads. Values below 1 mean 1.
	Parallel int
	// FailFast cancels outstanding loads on the first failure and returns
	// no table. Otherwise failed stations are left out of the table and
	// reported together.
	FailFast bool
}

// FetchAll loads every station with bounded concurrency and concatenates the
// results in request order. Duplicate IDs are loaded once. An empty ID list
// yields an empty table.
//
// Without FailFast, a non-nil table is returned alongside a
// *multierror.Error of *StationLoadError when some stations fail.
func FetchAll(ctx context.Context, stationIDs []string, load LoadFunc, opts FetchOptions) (*timeseries.Table, error) {
	ids := dedupe(stationIDs)
	if len(ids) == 0 {
		return timeseries.Empty(), nil
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}

	results := make([]*timeseries.Table, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, id := range ids {
		g.Go(func() error {
			tbl, err := load(gctx, id)
			if err != nil {
				lerr := &StationLoadError{StationID: id, Err: err}
				if opts.FailFast {
					return lerr
				}
				errs[i] = lerr
				return nil
			}
			results[i] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return timeseries.Concat(results...), merr.ErrorOrNil()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
