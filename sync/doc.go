package sync

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
)

// ColumnDocRow represents a single row in the column mapping documentation.
type ColumnDocRow struct {
	ColumnID    string // Board column id (e.g. "numeric_mkwtxtnh")
	Title       string // Human-readable title derived from the source field
	ColumnType  string // Board column type (Text, Numbers, Date, Date & Time)
	SourcePath  string // Ledger source path with any modifiers
	IsKey       bool   // Whether this is the matching-key column
	IsWatermark bool   // Whether this column bounds delta runs
}

// GenerateColumnDocumentation builds documentation rows for a configuration,
// sorted by column id for deterministic output.
func GenerateColumnDocumentation(config Config) []ColumnDocRow {
	mappings := config.ColumnMappings
	var rows []ColumnDocRow

	rows = append(rows, ColumnDocRow{
		ColumnID:   mappings.Key.Column,
		Title:      columnTitle(mappings.Key.Path),
		ColumnType: "Numbers",
		SourcePath: mappings.Key.Path,
		IsKey:      true,
	})
	for column, path := range mappings.Texts {
		rows = append(rows, ColumnDocRow{
			ColumnID:   column,
			Title:      columnTitle(path),
			ColumnType: "Text",
			SourcePath: path,
		})
	}
	for column, path := range mappings.Dates {
		rows = append(rows, ColumnDocRow{
			ColumnID:   column,
			Title:      columnTitle(path),
			ColumnType: "Date",
			SourcePath: path,
		})
	}
	for column, dt := range mappings.DateTimes {
		rows = append(rows, ColumnDocRow{
			ColumnID:    column,
			Title:       columnTitle(dt.Date),
			ColumnType:  "Date & Time",
			SourcePath:  dt.Date + " + " + dt.Time,
			IsWatermark: column == mappings.Watermark,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ColumnID < rows[j].ColumnID
	})
	return rows
}

// columnTitle derives a readable title from a ledger field name.
// e.g. "FederalTaxID" -> "Federal Tax ID", "Country|@countryName" -> "Country"
func columnTitle(path string) string {
	if i := strings.IndexByte(path, '|'); i >= 0 {
		path = path[:i]
	}
	title := strcase.ToDelimited(path, ' ')
	words := strings.Fields(title)
	for i, word := range words {
		if strings.EqualFold(word, "id") {
			words[i] = "ID"
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// FormatColumnDocumentationCSV formats the documentation rows as CSV.
func FormatColumnDocumentationCSV(rows []ColumnDocRow) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Column ID", "Title", "Column Type", "Ledger Source Path", "Notes"}); err != nil {
		return "", err
	}
	for _, row := range rows {
		var notes []string
		if row.IsKey {
			notes = append(notes, "Matching key")
		}
		if row.IsWatermark {
			notes = append(notes, "Watermark")
		}
		record := []string{row.ColumnID, row.Title, row.ColumnType, row.SourcePath, strings.Join(notes, " | ")}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
