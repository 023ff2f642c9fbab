package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"framecast/internal/logging"
)

// CurrentLogName is the pointer the daemon keeps at its active run log.
const CurrentLogName = logging.FileName

const followInterval = 250 * time.Millisecond

// CurrentPath returns the active daemon log inside logDir.
func CurrentPath(logDir string) string {
	return filepath.Join(logDir, CurrentLogName)
}

// TailOptions selects which lines Tail returns.
type TailOptions struct {
	// Offset resumes after a previous result; negative means "the last
	// Limit lines".
	Offset int64
	Limit  int
	// Follow waits up to Wait for new lines when none are available.
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult carries matching lines and the offset to resume from. The
// offset always sits on a line boundary; a trailing partial line is left for
// the next call.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads path according to opts. A missing file yields no lines.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return TailResult{}, nil
	case err != nil:
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var res TailResult
	switch {
	case opts.Offset < 0 && opts.Limit <= 0:
		res = TailResult{Offset: info.Size()}
	case opts.Offset < 0:
		res, err = readLines(path, 0, opts.Filter, opts.Limit)
	default:
		offset := opts.Offset
		if offset > info.Size() {
			// The pointer moved to a new, shorter run log.
			offset = 0
		}
		res, err = readLines(path, offset, opts.Filter, 0)
	}
	if err != nil || len(res.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return res, err
	}
	return waitForLines(ctx, path, res.Offset, opts)
}

// readLines scans complete lines from offset. keep > 0 retains only the last
// keep matches.
func readLines(path string, offset int64, filter Filter, keep int) (TailResult, error) {
	res := TailResult{Offset: offset}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return res, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return res, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read log file: %w", err)
		}
		res.Offset += int64(len(line))
		text := strings.TrimRight(line, "\r\n")
		if !filter.Match(text) {
			continue
		}
		res.Lines = append(res.Lines, text)
		if keep > 0 && len(res.Lines) > keep {
			res.Lines = res.Lines[1:]
		}
	}
	return res, nil
}

func waitForLines(ctx context.Context, path string, offset int64, opts TailOptions) (TailResult, error) {
	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	res := TailResult{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
		next, err := readLines(path, res.Offset, opts.Filter, 0)
		if err != nil {
			return res, err
		}
		res = next
		if len(res.Lines) > 0 || !time.Now().Before(deadline) {
			return res, nil
		}
	}
}

// Filter keeps lines carrying the given structured fields. Empty fields
// match everything.
type Filter struct {
	ProjectID   string
	OperationID string
}

// Match reports whether line carries every non-empty field of f.
func (f Filter) Match(line string) bool {
	return hasField(line, logging.FieldProjectID, f.ProjectID) &&
		hasField(line, logging.FieldOperationID, f.OperationID)
}

func hasField(line, key, value string) bool {
	if value == "" {
		return true
	}
	if strings.Contains(line, `"`+key+`":"`+value+`"`) {
		return true
	}
	want := key + "=" + value
	for _, token := range strings.Fields(line) {
		if token == want || token == key+`="`+value+`"` {
			return true
		}
	}
	return false
}
