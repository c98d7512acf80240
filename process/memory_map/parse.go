package memory_map

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseMemoryMap parses the /proc/[pid]/maps format. Malformed lines are skipped.
//
//	00400000-0040b000 r-xp 00000000 08:02 173521      /usr/bin/cat
func ParseMemoryMap(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		// Parse address range (e.g., "00400000-0040b000")
		start, end, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}

		startAddr, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(end, 16, 64)
		if err != nil || endAddr <= startAddr {
			continue
		}

		item := MemoryMapItem{
			Address: startAddr,
			Size:    uint(endAddr - startAddr),
			Perms:   fields[1],
		}
		if len(fields) > 2 {
			item.Offset, _ = strconv.ParseUint(fields[2], 16, 64)
		}
		if len(fields) > 4 {
			item.Inode, _ = strconv.ParseUint(fields[4], 10, 64)
		}
		if len(fields) > 5 {
			// Paths may contain spaces; " (deleted)" stays part of the name.
			item.Path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return memoryMap, nil
}
