package timeseries

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
)

const dateLayout = "2006-01-02"

// WriteCSV writes the table with a station column followed by the schema
// header. Nulls are written as empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cols := t.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"station"}, schema.Daily().Header()...)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, 2+len(cols))
	for _, r := range t.rows {
		record[0] = r.StationID
		record[1] = r.Date.Format(dateLayout)
		for i, c := range cols {
			record[2+i] = formatValue(*c.Field(&r))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

type jsonRow struct {
	Station string   `json:"station"`
	Date    string   `json:"date"`
	TAvg    *float64 `json:"tavg"`
	TMin    *float64 `json:"tmin"`
	TMax    *float64 `json:"tmax"`
	Prcp    *float64 `json:"prcp"`
	Snow    *float64 `json:"snow"`
	WDir    *float64 `json:"wdir"`
	WSpd    *float64 `json:"wspd"`
	WPgt    *float64 `json:"wpgt"`
	Pres    *float64 `json:"pres"`
	TSun    *float64 `json:"tsun"`
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toJSONRow(r models.DailyObservation) jsonRow {
	return jsonRow{
		Station: r.StationID,
		Date:    r.Date.Format(dateLayout),
		TAvg:    nullable(r.TAvg),
		TMin:    nullable(r.TMin),
		TMax:    nullable(r.TMax),
		Prcp:    nullable(r.Prcp),
		Snow:    nullable(r.Snow),
		WDir:    nullable(r.WDir),
		WSpd:    nullable(r.WSpd),
		WPgt:    nullable(r.WPgt),
		Pres:    nullable(r.Pres),
		TSun:    nullable(r.TSun),
	}
}

// WriteJSON writes the table as a JSON array of row objects. Nulls are
// written as JSON null.
func WriteJSON(w io.Writer, t *Table) error {
	out := make([]jsonRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, toJSONRow(r))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
