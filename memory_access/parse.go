package memory_access

import (
	"fmt"
	"strconv"
	"strings"

	"procmem/process"
)

func parseInt(text string, bits int) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(text), 0, bits)
}

func parseUint(text string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(text), 0, bits)
}

func parseFloat(text string, bits int) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(text), bits)
}

// ParseOffsets parses a comma separated chain such as "0x10, -0x8, 0x20".
func ParseOffsets(text string) ([]int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	parts := strings.Split(text, ",")
	offsets := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		neg := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(strings.TrimPrefix(part, "-"), "+")
		u, err := strconv.ParseUint(part, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("offset %q: %v: %w", part, err, process.ErrInvalidArgument)
		}
		o := int64(u)
		if neg {
			o = -o
		}
		offsets = append(offsets, o)
	}
	return offsets, nil
}
