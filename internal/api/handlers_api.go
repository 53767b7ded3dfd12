package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lox/meteodaily/internal/daily"
	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
	"github.com/lox/meteodaily/internal/timeseries"
)

const dateLayout = "2006-01-02"

type rangeParams struct {
	start time.Time
	end   time.Time
	model bool
	freq  timeseries.Frequency
}

func parseRange(q url.Values) (rangeParams, error) {
	p := rangeParams{model: true, freq: timeseries.Daily}
	var err error
	if v := q.Get("start"); v != "" {
		if p.start, err = time.Parse(dateLayout, v); err != nil {
			return p, fmt.Errorf("invalid start: %w", err)
		}
	}
	if v := q.Get("end"); v != "" {
		if p.end, err = time.Parse(dateLayout, v); err != nil {
			return p, fmt.Errorf("invalid end: %w", err)
		}
	}
	if v := q.Get("model"); v != "" {
		if p.model, err = strconv.ParseBool(v); err != nil {
			return p, fmt.Errorf("invalid model: %w", err)
		}
	}
	if v := q.Get("freq"); v != "" {
		if p.freq, err = timeseries.ParseFrequency(v); err != nil {
			return p, err
		}
	}
	return p, nil
}

func parseFloat(q url.Values, name string, required bool) (float64, bool, error) {
	v := q.Get(name)
	if v == "" {
		if required {
			return 0, false, fmt.Errorf("missing %s", name)
		}
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return f, true, nil
}

// parsePoint reads lat, lon and the optional search parameters.
func parsePoint(q url.Values) (models.Point, error) {
	lat, _, err := parseFloat(q, "lat", true)
	if err != nil {
		return models.Point{}, err
	}
	lon, _, err := parseFloat(q, "lon", true)
	if err != nil {
		return models.Point{}, err
	}
	p := models.NewPoint(lat, lon)

	if alt, ok, err := parseFloat(q, "alt", false); err != nil {
		return p, err
	} else if ok {
		p = p.WithAlt(alt)
	}
	if radius, ok, err := parseFloat(q, "radius", false); err != nil {
		return p, err
	} else if ok {
		p.Radius = radius
	}
	if altRange, ok, err := parseFloat(q, "alt_range", false); err != nil {
		return p, err
	} else if ok {
		p.AltRange = altRange
	}
	if v := q.Get("max_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid max_count: %w", err)
		}
		p.MaxCount = n
	}
	if v := q.Get("method"); v != "" {
		p.Method = v
	}
	if v := q.Get("adapt_temp"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid adapt_temp: %w", err)
		}
		p.AdaptTemp = b
	}
	return p, nil
}

func (s *Server) handleAPIStationsDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var ids []string
	for _, v := range q["id"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	rp, err := parseRange(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	series, err := s.client.Stations(r.Context(), ids, rp.start, rp.end, rp.model)
	s.writeSeries(w, q.Get("format"), series, rp.freq, err)
}

func (s *Server) handleAPIPointDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := parsePoint(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := daily.ParseMethod(p.Method); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rp, err := parseRange(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	series, err := s.client.Point(r.Context(), p, rp.start, rp.end, rp.model)
	s.writeSeries(w, q.Get("format"), series, rp.freq, err)
}

// writeSeries responds with whatever loaded. Partial results carry the
// failed stations in the X-Load-Errors header.
func (s *Server) writeSeries(w http.ResponseWriter, format string, series *daily.Series, freq timeseries.Frequency, loadErr error) {
	if series == nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(loadErr, daily.ErrMetadataMissing):
			status = http.StatusNotFound
		case errors.Is(loadErr, daily.ErrSchemaInvalid):
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, loadErr.Error(), status)
		return
	}
	if loadErr != nil {
		log.Warnw("api: partial result", "error", loadErr)
		w.Header().Set("X-Load-Errors", strings.ReplaceAll(loadErr.Error(), "\n", " "))
	}

	tbl := series.Table()
	if freq != timeseries.Daily {
		tbl = series.Aggregate(freq)
	}

	var err error
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		err = timeseries.WriteCSV(w, tbl)
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		err = timeseries.WriteJSON(w, tbl)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Warnw("api: write response", "error", err)
	}
}

func (s *Server) handleAPINearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := parsePoint(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rp, err := parseRange(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	metas, err := s.store.NearbyStations(r.Context(), p, schema.Daily().Granularity(), rp.start, rp.end, rp.model)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if metas == nil {
		metas = []models.StationMeta{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metas)
}

func (s *Server) handleAPIStation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/stations/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	st, err := s.store.GetStation(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if st == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}
