// Package ledger stores capture events as append-only CSV files, one per
// gesture label, under a dataset directory.
//
// Every ledger starts with the same header:
//
//	time,capture_type,x0,y0,z0,...,x20,y20,z20
//
// Rows are never rewritten or removed. Appends are a single write followed
// by fsync; a failed append is truncated back, and a torn trailing row left
// by a crash is cut off the next time the file is opened.
package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logger"
	"go.uber.org/zap"
)

// Ext is the file extension of ledger files.
const Ext = ".csv"

// NumColumns is the width of every ledger row.
const NumColumns = 2 + detector.NumCoords

var (
	// ErrSchemaMismatch is returned when an existing file's header differs
	// from Header. The file is left untouched.
	ErrSchemaMismatch = errors.New("ledger header mismatch")

	// ErrWrite wraps I/O failures while appending a row.
	ErrWrite = errors.New("ledger write failed")

	// ErrInvalidLabel is returned for labels that cannot name a file.
	ErrInvalidLabel = errors.New("invalid label")
)

// Header is the fixed column list shared by every ledger file.
var Header = buildHeader()

func buildHeader() []string {
	h := make([]string, 0, NumColumns)
	h = append(h, "time", "capture_type")
	for i := 0; i < detector.NumLandmarks; i++ {
		h = append(h, fmt.Sprintf("x%d", i), fmt.Sprintf("y%d", i), fmt.Sprintf("z%d", i))
	}
	return h
}

// headerLine is Header as written to disk, including the trailing newline.
// Files written by Python's csv module end lines in CRLF instead; those are
// accepted and appended to in the same style.
var (
	headerText = strings.Join(Header, ",")
	headerLine = headerText + "\n"
)

// Ledger is a dataset directory holding one ledger file per label.
type Ledger struct {
	dir    string
	logger *zap.Logger
}

// New returns a Ledger rooted at dir, creating the directory if needed.
func New(dir string, log *zap.Logger) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}
	return &Ledger{dir: dir, logger: logger.OrNop(log)}, nil
}

// Dir returns the dataset directory.
func (l *Ledger) Dir() string {
	return l.dir
}

// Path returns the ledger file path for label.
func (l *Ledger) Path(label string) string {
	return filepath.Join(l.dir, label+Ext)
}

// ValidateLabel rejects labels that are empty or would escape the dataset dir.
func ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLabel)
	}
	if strings.ContainsAny(label, `/\`) || label == "." || label == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return nil
}

// CountRows returns the number of data rows for label: complete lines minus
// the header, clamped at zero. A trailing fragment without a newline is a
// torn row and is not counted, matching what Open keeps. A missing file
// counts as zero.
func (l *Ledger) CountRows(label string) (int, error) {
	if err := ValidateLabel(label); err != nil {
		return 0, err
	}

	f, err := os.Open(l.Path(label))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	lines, err := countLines(f)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	if lines <= 1 {
		return 0, nil
	}
	return lines - 1, nil
}

// countLines counts newline-terminated lines. CRLF endings count once.
func countLines(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 64*1024)

	lines := 0
	for {
		n, err := br.Read(buf)
		lines += bytes.Count(buf[:n], []byte{'\n'})
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return lines, nil
}

// Labels returns the labels that have a ledger file, sorted.
func (l *Ledger) Labels() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	var labels []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		labels = append(labels, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(labels)
	return labels, nil
}

// Open opens the ledger for label for appending, creating it with the
// header if it does not exist or is empty. An existing file must carry the
// exact header, terminated by LF or CRLF; new rows use the same terminator.
// A torn trailing row is truncated away.
func (l *Ledger) Open(label string) (*File, error) {
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}

	path := l.Path(label)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat ledger %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		if err := writeSynced(f, 0, []byte(headerLine)); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: header for %s: %v", ErrWrite, path, err)
		}
		l.logger.Debug("ledger created", zap.String("label", label), zap.String("path", path))
		return &File{label: label, path: path, f: f, size: int64(len(headerLine))}, nil
	}

	crlf, err := checkHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	size, err = l.repairTail(f, label, size)
	if err != nil {
		f.Close()
		return nil, err
	}

	rows, err := countLines(io.NewSectionReader(f, 0, size))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("count rows: %w", err)
	}

	return &File{label: label, path: path, f: f, size: size, rows: rows - 1, crlf: crlf}, nil
}

// checkHeader verifies the first line and reports whether it ends in CRLF.
func checkHeader(f *os.File) (crlf bool, err error) {
	buf := make([]byte, len(headerText)+2)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read header: %w", err)
	}
	got := string(buf[:n])
	switch {
	case strings.HasPrefix(got, headerLine):
		return false, nil
	case got == headerText+"\r\n":
		return true, nil
	default:
		return false, ErrSchemaMismatch
	}
}

// repairTail truncates bytes after the last newline, which can only be a
// row torn by a crash mid-append. A lone trailing CR counts as torn too. It
// returns the new size.
func (l *Ledger) repairTail(f *os.File, label string, size int64) (int64, error) {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, fmt.Errorf("read ledger tail: %w", err)
	}
	if last[0] == '\n' {
		return size, nil
	}

	end, err := lastNewline(f, size)
	if err != nil {
		return 0, err
	}

	if err := f.Truncate(end); err != nil {
		return 0, fmt.Errorf("%w: truncate torn row: %v", ErrWrite, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: sync after repair: %v", ErrWrite, err)
	}

	l.logger.Warn("truncated torn row at end of ledger",
		zap.String("label", label),
		zap.Int64("bytes", size-end),
	)
	return end, nil
}

// lastNewline returns the offset just past the final newline before size.
func lastNewline(f *os.File, size int64) (int64, error) {
	const chunk = 4096
	buf := make([]byte, chunk)

	for end := size; end > 0; {
		start := end - chunk
		if start < 0 {
			start = 0
		}
		n, err := f.ReadAt(buf[:end-start], start)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("scan ledger tail: %w", err)
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			return start + int64(i) + 1, nil
		}
		end = start
	}
	// The header always ends in a newline, so this is unreachable for a
	// file that passed checkHeader.
	return 0, ErrSchemaMismatch
}

func writeSynced(f *os.File, off int64, data []byte) error {
	if _, err := f.WriteAt(data, off); err != nil {
		return err
	}
	return f.Sync()
}
