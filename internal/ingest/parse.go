package ingest

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
)

// ErrSchemaInvalid is returned when fetched rows do not match the fixed
// column layout or fail validation.
var ErrSchemaInvalid = errors.New("schema invalid")

// ParseDaily decodes a bulk daily file. The payload may be gzip-compressed.
// Columns follow s.Header(): the first is the date, the rest are real
// numbers where an empty field is null. A header row is skipped if present.
func ParseDaily(payload []byte, s *schema.Schema) ([]models.DailyObservation, error) {
	r, err := decompress(payload)
	if err != nil {
		return nil, err
	}

	header := s.Header()
	cols := s.Columns()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var rows []models.DailyObservation
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSchemaInvalid, line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), header[0]) {
			continue
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("%w: line %d: %d fields, want %d", ErrSchemaInvalid, line, len(record), len(header))
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: parse date: %v", ErrSchemaInvalid, line, err)
		}
		obs := models.DailyObservation{Date: date}
		for i, c := range cols {
			v, err := parseFloat(record[i+1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: column %s: %v", ErrSchemaInvalid, line, c, err)
			}
			*c.Field(&obs) = v
		}
		rows = append(rows, obs)
	}
	return rows, nil
}

func decompress(payload []byte) (io.Reader, error) {
	if len(payload) >= 2 && payload[0] == 0x1f && payload[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrSchemaInvalid, err)
		}
		return gz, nil
	}
	return bytes.NewReader(payload), nil
}

func parseFloat(s string) (sql.NullFloat64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	if math.IsNaN(f) {
		return sql.NullFloat64{}, nil
	}
	return sql.NullFloat64{Float64: f, Valid: true}, nil
}
