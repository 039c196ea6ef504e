package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Roster columns read by ReadCustomers. Other columns are kept in CustomerRecord.Raw only.
const (
	ColumnCustomerID   = "customer_id"
	ColumnCustomerName = "customer_name"
	ColumnMobileNumber = "mobile_number"
	ColumnRegion       = "region"
)

// CustomerRecord is one roster row as text. Missing cells are empty strings.
type CustomerRecord struct {
	Line         int
	CustomerID   string
	CustomerName string
	MobileNumber string
	Region       string
	Raw          map[string]string
}

// ReadCustomers reads a roster with a header row. Rows the CSV parser rejects become failures; the
// returned error is reserved for I/O problems.
func ReadCustomers(r io.Reader) (Batch[CustomerRecord], error) {
	var batch Batch[CustomerRecord]

	data, err := io.ReadAll(r)
	if err != nil {
		return batch, fmt.Errorf("read roster: %w", err)
	}
	lines := strings.Split(string(data), "\n")

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		return batch, fmt.Errorf("read roster header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = strings.ToLower(strings.TrimSpace(name))
	}

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return batch, fmt.Errorf("read roster: %w", err)
			}
			batch.Failures = append(batch.Failures, Failure{
				Line: perr.StartLine,
				Raw: map[string]string{
					"line": fmt.Sprint(perr.StartLine),
					"raw":  rawLines(lines, perr.StartLine, perr.Line),
				},
				Err:  err,
			})
			continue
		}

		line, _ := cr.FieldPos(0)
		raw := make(map[string]string, len(columns))
		for i, name := range columns {
			if name == "" {
				continue
			}
			if i < len(fields) {
				raw[name] = fields[i]
			} else {
				raw[name] = ""
			}
		}

		batch.Records = append(batch.Records, CustomerRecord{
			Line:         line,
			CustomerID:   raw[ColumnCustomerID],
			CustomerName: raw[ColumnCustomerName],
			MobileNumber: raw[ColumnMobileNumber],
			Region:       raw[ColumnRegion],
			Raw:          raw,
		})
	}
	return batch, nil
}

// rawLines returns lines from..to (1-based, inclusive) as they appeared in the file.
func rawLines(lines []string, from, to int) string {
	if from < 1 {
		from = 1
	}
	if to > len(lines) {
		to = len(lines)
	}
	if to < from {
		return ""
	}
	out := make([]string, 0, to-from+1)
	for _, l := range lines[from-1 : to] {
		out = append(out, strings.TrimSuffix(l, "\r"))
	}
	return strings.Join(out, "\n")
}
