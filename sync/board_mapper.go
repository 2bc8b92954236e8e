package sync

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/sjson"
)

// BoardMapper transforms one supplier record into the destination's column
// values. Mapping is deterministic and performs no I/O; bad values are
// logged and omitted, never fatal for the record.
type BoardMapper struct {
	*SyncContext
}

// MapSupplier maps a supplier to board column values.
//
// The matching key is parsed as a number; a non-numeric key omits the column
// with a warning but the record is still processed. Text columns are copied
// verbatim with absent values mapped to "" so the board field is explicitly
// cleared on update. Date columns take the calendar-date component only.
// Date+time columns are composed from the ledger's split date and integer
// time-of-day; composition failures omit the column with a warning.
func (m BoardMapper) MapSupplier(s Supplier) map[string]interface{} {
	values := make(map[string]interface{})
	mappings := m.Config.ColumnMappings

	if raw, ok := s.Source.StringForPath(mappings.Key.Path); ok && raw != "" {
		if key, err := strconv.ParseInt(raw, 10, 64); err == nil {
			values[mappings.Key.Column] = key
		} else {
			m.Logger.Warn().Str("code", s.Code()).Str("key", raw).
				Msg("matching key is not numeric, column omitted")
		}
	}

	for column, path := range mappings.Texts {
		value, _ := s.Source.StringForPath(path)
		values[column] = value
	}

	for column, path := range mappings.Dates {
		value, ok := s.Source.StringForPath(path)
		if !ok || value == "" {
			continue
		}
		values[column] = map[string]string{"date": datePart(value)}
	}

	for column, dt := range mappings.DateTimes {
		date, dateOK := s.Source.StringForPath(dt.Date)
		timeOfDay, timeOK := s.Source.StringForPath(dt.Time)
		if !dateOK || !timeOK || date == "" {
			continue
		}
		composed, err := composeDateTime(date, timeOfDay)
		if err != nil {
			m.Logger.Warn().Str("code", s.Code()).Err(err).
				Msg("date/time composition failed, column omitted")
			continue
		}
		values[column] = composed
	}

	return values
}

// ColumnValuesJSON renders mapped column values as the JSON document the
// board's mutation variables expect. Keys are emitted in sorted order so the
// output is deterministic.
func ColumnValuesJSON(values map[string]interface{}) (string, error) {
	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	result := "{}"
	for _, column := range columns {
		var err error
		result, err = sjson.Set(result, escapeColumnID(column), values[column])
		if err != nil {
			return "", fmt.Errorf("failed to encode column %s: %w", column, err)
		}
	}
	return result, nil
}

// escapeColumnID guards against sjson treating column ids as nested paths.
func escapeColumnID(column string) string {
	column = strings.ReplaceAll(column, ".", `\.`)
	return strings.ReplaceAll(column, "*", `\*`)
}

// datePart extracts 'YYYY-MM-DD' from a ledger timestamp like
// '2025-10-24T00:00:00Z'. Plain dates pass through.
func datePart(value string) string {
	if i := strings.IndexByte(value, 'T'); i > 0 {
		return value[:i]
	}
	return value
}

// composeDateTime builds a board date+time value from a ledger date and the
// integer time-of-day encoding (e.g. 1432 meaning 14:32). The time component
// may arrive as a bare number or partially colonized string: colons are
// stripped, the digits left-padded to 4, then split into HH and MM with
// seconds fixed at 00.
func composeDateTime(date, timeOfDay string) (map[string]string, error) {
	d, err := parseLedgerDate(date)
	if err != nil {
		return nil, err
	}

	digits := strings.ReplaceAll(timeOfDay, ":", "")
	if digits == "" || len(digits) > 4 {
		return nil, fmt.Errorf("unrecognised time of day %q", timeOfDay)
	}
	if _, err := strconv.Atoi(digits); err != nil {
		return nil, fmt.Errorf("unrecognised time of day %q", timeOfDay)
	}
	digits = strings.Repeat("0", 4-len(digits)) + digits

	return map[string]string{
		"date": d.UTC().Format(deltaDateFormat),
		"time": fmt.Sprintf("%s:%s:00", digits[:2], digits[2:]),
	}, nil
}

func parseLedgerDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, deltaDateFormat} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}
