package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	tailChunkSize = 32 * 1024
	followPoll    = 250 * time.Millisecond
)

// TailOptions controls a single Tail call. A negative Offset returns the
// last Limit matching lines; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads complete lines from the log at path. A line still being written
// is left for the next call. Lines rejected by the filter advance the offset.
// With Follow set and nothing to return, Tail polls for up to Wait.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	var (
		result TailResult
		err    error
	)
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit, opts.Filter)
	} else {
		result, err = readFrom(path, opts.Offset, opts.Filter)
	}
	if err != nil || len(result.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return result, err
	}
	return follow(ctx, path, result.Offset, opts)
}

func follow(ctx context.Context, path string, offset int64, opts TailOptions) (TailResult, error) {
	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(followPoll)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
		next, err := readFrom(path, result.Offset, opts.Filter)
		if err != nil {
			return result, err
		}
		result = next
		if len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, nil
		}
	}
}

// openLog returns a nil file without error when the log does not exist yet.
func openLog(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return file, info.Size(), nil
}

// readFrom returns the complete lines after offset. An offset past the end
// means the file was truncated or replaced, so reading restarts at zero.
func readFrom(path string, offset int64, filter Filter) (TailResult, error) {
	file, size, err := openLog(path)
	if file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	if offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	result := TailResult{Offset: offset}
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return result, nil
			}
			return result, fmt.Errorf("read log file: %w", err)
		}
		result.Offset += int64(len(line))
		if text := trimLine(line); filter == nil || filter(text) {
			result.Lines = append(result.Lines, text)
		}
	}
}

// lastLines reads backwards from the end of the file in chunks until limit
// matching lines are known or the start of the file is reached.
func lastLines(path string, limit int, filter Filter) (TailResult, error) {
	file, size, err := openLog(path)
	if file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	var (
		buf   []byte
		pos   = size
		lines []string
		end   int
	)
	for pos > 0 {
		n := min(int64(tailChunkSize), pos)
		pos -= n
		chunk := make([]byte, n)
		if _, err := file.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return TailResult{}, fmt.Errorf("read log file: %w", err)
		}
		buf = append(chunk, buf...)

		end = bytes.LastIndexByte(buf, '\n') + 1
		if end == 0 {
			continue
		}
		lines = splitComplete(buf[:end], pos > 0, filter)
		if len(lines) >= limit {
			break
		}
	}

	if limit <= 0 {
		lines = nil
	} else if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return TailResult{Lines: lines, Offset: pos + int64(end)}, nil
}

// splitComplete splits newline-terminated data into lines. When partialHead
// is set the first line may be cut by the chunk boundary and is dropped.
func splitComplete(data []byte, partialHead bool, filter Filter) []string {
	raw := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if partialHead {
		raw = raw[1:]
	}
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		text := trimLine(line)
		if filter == nil || filter(text) {
			lines = append(lines, text)
		}
	}
	return lines
}

func trimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}
