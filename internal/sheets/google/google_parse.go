package google

import (
	"fmt"
	"strings"

	ports "jizhang/internal/sheets"
)

// rowsFromValues converts a values matrix (as returned by Sheets API) into
// header-keyed rows. The first row is the header; blank rows are skipped and
// short rows are padded with empty strings, since the API trims trailing
// empty cells.
func rowsFromValues(values [][]interface{}) []ports.Row {
	if len(values) == 0 {
		return nil
	}
	headers := toStrings(values[0])
	out := make([]ports.Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		if isBlank(raw) {
			continue
		}
		row := ports.Row{}
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(raw) {
				row[h] = raw[i]
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	return out
}

// a1Range builds "'Sheet name'!A1"-style ranges; an empty cell means the
// whole sheet.
func a1Range(sheet, cell string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if cell == "" {
		return quoted
	}
	return quoted + "!" + cell
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(in []interface{}) bool {
	for _, v := range in {
		if v != nil && strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}
