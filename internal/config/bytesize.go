package config

import (
	"fmt"
	"strconv"
	"strings"
)

var byteSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"KIB", 1 << 10},
	{"MIB", 1 << 20},
	{"GIB", 1 << 30},
	{"KB", 1000},
	{"MB", 1000 * 1000},
	{"GB", 1000 * 1000 * 1000},
	{"B", 1},
}

// ParseByteSize parses sizes like "512", "64MB" or "256MiB".
func ParseByteSize(s string) (int64, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, fmt.Errorf("empty size")
	}
	upper := strings.ToUpper(strings.ReplaceAll(in, "_", ""))

	mult := int64(1)
	numPart := upper
	for _, bs := range byteSuffixes {
		if strings.HasSuffix(upper, bs.suffix) {
			mult = bs.mult
			numPart = strings.TrimSuffix(upper, bs.suffix)
			break
		}
	}

	numPart = strings.TrimSpace(numPart)
	if numPart == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n > 0 && n > (1<<63-1)/mult {
		return 0, fmt.Errorf("size overflow %q", s)
	}
	return n * mult, nil
}
