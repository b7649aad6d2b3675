package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/ayusman/mudra/internal/policy"
)

// File is an open ledger for one label. It is safe for concurrent use.
type File struct {
	mu    sync.Mutex
	label string
	path  string
	f     *os.File
	size  int64
	rows  int

	// crlf is set for files whose lines end in CRLF.
	crlf bool
}

// Label returns the label this ledger records.
func (lf *File) Label() string {
	return lf.label
}

// Path returns the file path.
func (lf *File) Path() string {
	return lf.path
}

// Rows returns the number of data rows in the file, including rows written
// before it was opened.
func (lf *File) Rows() int {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.rows
}

// Append writes one row for e. The row either lands completely and is
// synced, or the file is truncated back to its previous size and an error
// wrapping ErrWrite is returned.
func (lf *File) Append(e policy.Event) error {
	if e.Label != lf.label {
		return fmt.Errorf("event label %q does not match ledger %q", e.Label, lf.label)
	}

	row, err := encodeRow(e, lf.crlf)
	if err != nil {
		return err
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.f == nil {
		return fmt.Errorf("%w: ledger %s is closed", ErrWrite, lf.label)
	}

	if err := writeSynced(lf.f, lf.size, row); err != nil {
		if terr := lf.f.Truncate(lf.size); terr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrWrite, err, terr)
		}
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	lf.size += int64(len(row))
	lf.rows++
	return nil
}

// Close releases the file handle. Further appends fail.
func (lf *File) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}

// encodeRow renders e as a complete CSV line in Header order, ending in
// CRLF when crlf is set.
func encodeRow(e policy.Event, crlf bool) ([]byte, error) {
	record := make([]string, 0, NumColumns)
	record = append(record, e.Timestamp, string(e.Type))
	for _, v := range e.Hand.Flatten() {
		record = append(record, strconv.FormatFloat(v, 'f', 9, 64))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = crlf
	if err := w.Write(record); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return buf.Bytes(), nil
}
