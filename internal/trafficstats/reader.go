package trafficstats

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strconv"
)

// readBufSize bounds a single counter read; any decimal int64 fits.
const readBufSize = 80

// readNumber returns the decimal number stored at path, -1 on any failure.
// A missing file is routine and is not logged.
func (s *Stats) readNumber(path string) int64 {
	if !s.supported {
		return -1
	}
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("can't open counter file", "path", path, "error", err)
		}
		return -1
	}
	defer f.Close()

	buf := make([]byte, readBufSize-1)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Error("can't read counter file", "path", path, "error", err)
		return -1
	}
	return parseLeadingInt(buf[:n])
}

// parseLeadingInt converts the leading decimal integer in b, stopping at the
// first non-digit. Leading whitespace and a sign are accepted, no digits
// yields 0 and out-of-range values saturate.
func parseLeadingInt(b []byte) int64 {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	start := i
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}
	digits := i
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == digits {
		return 0
	}
	// ParseInt returns the saturated bound alongside ErrRange.
	v, _ := strconv.ParseInt(string(b[start:i]), 10, 64)
	return v
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
