package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// catalogRow maps a column name to its trimmed value.
type catalogRow map[string]string

var (
	ingredientColumns = []string{"name", "measurement_unit"}
	tagColumns        = []string{"name", "color", "slug"}

	slugPattern = regexp.MustCompile(`[^a-z0-9_]+`)
)

// readRows loads path by extension. CSV and PDF rows are positional, with an
// optional header line naming the columns; JSON files hold an array of
// objects keyed by column name.
func readRows(path string, columns []string) ([]catalogRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []catalogRow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		rows, err = parseJSON(data)
	case ".pdf":
		var text string
		text, err = extractTextFromPDF(data)
		if err == nil {
			rows, err = parseCSV(strings.NewReader(text), columns)
		}
	default:
		rows, err = parseCSV(bytes.NewReader(data), columns)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows found")
	}
	for idx, row := range rows {
		if row["name"] == "" {
			return nil, fmt.Errorf("row %d has no name", idx+1)
		}
	}
	return rows, nil
}

func parseCSV(r io.Reader, columns []string) ([]catalogRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) > 0 && len(records[0]) > 0 && strings.EqualFold(strings.TrimSpace(records[0][0]), "name") {
		columns = make([]string, len(records[0]))
		for idx, key := range records[0] {
			columns[idx] = strings.ToLower(strings.TrimSpace(key))
		}
		records = records[1:]
	}

	rows := make([]catalogRow, 0, len(records))
	for _, record := range records {
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		row := make(catalogRow, len(columns))
		for idx, key := range columns {
			if idx >= len(record) {
				continue
			}
			row[key] = strings.TrimSpace(record[idx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseJSON(data []byte) ([]catalogRow, error) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	rows := make([]catalogRow, 0, len(items))
	for _, item := range items {
		row := make(catalogRow, len(item))
		for key, value := range item {
			if value == nil {
				continue
			}
			row[strings.ToLower(key)] = strings.TrimSpace(fmt.Sprint(value))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func slugify(name string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_"), "_")
}
