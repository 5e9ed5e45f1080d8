package export

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	// Widths fixes spreadsheet column widths by header.
	Widths map[string]float64
	// Numeric lists headers whose cells are written as numbers when parseable.
	Numeric map[string]bool
}

// Record returns the row values in header order.
func (d Dataset) Record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

// Subset keeps only the given headers, in the given order.
func (d Dataset) Subset(headers ...string) Dataset {
	out := Dataset{Headers: headers, Rows: make([]map[string]string, len(d.Rows))}
	for i, row := range d.Rows {
		picked := make(map[string]string, len(headers))
		for _, h := range headers {
			picked[h] = row[h]
		}
		out.Rows[i] = picked
	}
	return out
}
