package trafficstats

import (
	"os"
	"strings"
)

// accumulator distinguishes "nothing read" from a genuine zero total.
type accumulator struct {
	total int64
	ok    bool
}

// add folds n into the sum. Overflow wraps around.
func (a *accumulator) add(n int64) {
	if !a.ok {
		a.total, a.ok = n, true
		return
	}
	a.total += n
}

func (a accumulator) value() int64 {
	if !a.ok {
		return -1
	}
	return a.total
}

// sumInterfaces adds counter c across every interface in the net class
// directory accepted by match (nil accepts all). Hidden entries and
// loopback interfaces never contribute. Returns -1 if nothing was read.
func (s *Stats) sumInterfaces(c Counter, match func(name string) bool) int64 {
	if !s.supported {
		return -1
	}
	entries, err := os.ReadDir(s.netDir)
	if err != nil {
		s.logger.Error("can't list interfaces", "path", s.netDir, "error", err)
		return -1
	}

	var acc accumulator
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, loopbackPrefix) {
			continue
		}
		if match != nil && !match(name) {
			continue
		}
		if n := s.readNumber(s.counterPath(name, c)); n >= 0 {
			acc.add(n)
		}
	}
	return acc.value()
}
