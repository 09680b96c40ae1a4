// Package export renders the transaction list as downloadable documents.
package export

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"pocketbalance/internal/core"
)

var ErrNothingToExport = errors.New("nothing to export")

const (
	Filename    = "pocketbalance_data.csv"
	ContentType = "text/csv;charset=utf-8"
)

// Columns is the header row shared by every format.
var Columns = []string{"id", "type", "description", "amount", "category", "date"}

// CSV renders txs in list order. See WriteCSV.
func CSV(txs []core.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, txs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes one header line and one line per transaction, separated
// by "\n" with no trailing newline. The description is wrapped in double
// quotes but quotes inside it are NOT escaped, so a description containing
// `"` produces a row strict CSV readers will misparse. This matches the
// documents users already have. The category is empty for income.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	if len(txs) == 0 {
		return ErrNothingToExport
	}

	var b strings.Builder
	b.WriteString(strings.Join(Columns, ","))
	for _, tx := range txs {
		b.WriteByte('\n')
		b.WriteString(tx.ID)
		b.WriteByte(',')
		b.WriteString(tx.Type.String())
		b.WriteString(`,"`)
		b.WriteString(tx.Description)
		b.WriteString(`",`)
		b.WriteString(core.FormatAmount(tx.Amount))
		b.WriteByte(',')
		if tx.IsSpending() {
			b.WriteString(string(tx.Category))
		}
		b.WriteByte(',')
		b.WriteString(tx.Date)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
